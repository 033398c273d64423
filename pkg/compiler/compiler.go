package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openloom/openloom/pkg/artifact"
	"github.com/openloom/openloom/pkg/fabric"
	"github.com/openloom/openloom/pkg/inventory"
	"github.com/openloom/openloom/pkg/policy"
	"github.com/openloom/openloom/pkg/render"
	"github.com/openloom/openloom/pkg/resolver"
	"github.com/openloom/openloom/pkg/stores"
	"github.com/openloom/openloom/pkg/telemetry"
)

// overrideSource labels command-line override values in provenance and
// conflict reports.
const overrideSource = "command line"

// Compiler drives the per-device pipeline: resolve, validate, policy,
// render, store. Devices compile independently over a bounded worker
// pool; one device's failure never aborts the batch.
type Compiler struct {
	inventory *inventory.Inventory
	artifacts *artifact.Store
	policies  *policy.Engine
	ledger    stores.Store
	logger    zerolog.Logger
}

// New creates a compiler over a loaded inventory. policies may be nil to
// skip the policy gate, and ledger may be nil to run without recording,
// which inspection commands use.
func New(inv *inventory.Inventory, artifacts *artifact.Store, policies *policy.Engine, ledger stores.Store, logger zerolog.Logger) *Compiler {
	return &Compiler{
		inventory: inv,
		artifacts: artifacts,
		policies:  policies,
		ledger:    ledger,
		logger:    logger.With().Str("component", "compiler").Logger(),
	}
}

// Select resolves Options.Selector and Options.Hostnames to the devices
// a run would compile, preserving input order: explicit hostnames keep
// the order given, selector matches keep inventory order. Naming a
// device the inventory does not have fails the whole selection.
func (c *Compiler) Select(opts Options) ([]inventory.Device, error) {
	sel, err := ParseSelector(opts.Selector)
	if err != nil {
		return nil, NewError(ErrorClassConfig, "invalid selector", err).WithCode(ErrCodeBadSelector)
	}

	if len(opts.Hostnames) > 0 {
		devices := make([]inventory.Device, 0, len(opts.Hostnames))
		for _, h := range opts.Hostnames {
			d, ok := c.inventory.Device(h)
			if !ok {
				return nil, NewError(ErrorClassInventory, fmt.Sprintf("unknown device %q", h), nil).
					WithCode(ErrCodeUnknownDevice).
					WithDevice(h)
			}
			if sel.Matches(d) {
				devices = append(devices, d)
			}
		}
		return devices, nil
	}

	var devices []inventory.Device
	for _, d := range c.inventory.Devices {
		if sel.Matches(d) {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

// Run compiles the selected devices and, unless opts.Check is set,
// writes their artifacts. Every selected device is attempted; failures
// are reported per device in the returned results. The error return is
// reserved for run-level failures: a bad selection or a ledger that
// stopped accepting writes.
func (c *Compiler) Run(ctx context.Context, opts Options) (*RunResult, error) {
	devices, err := c.Select(opts)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	mode := stores.RunModeBuild
	if opts.Check {
		mode = stores.RunModeCheck
	}

	started := time.Now()
	ctx = telemetry.WithBuildContext(ctx, runID, string(mode), len(devices))

	if err := c.createRun(ctx, runID, mode, opts, len(devices)); err != nil {
		telemetry.EndBuildContext(ctx, runID, string(stores.RunStatusFailed), err)
		return nil, err
	}

	c.logger.Info().
		Str("run_id", runID).
		Str("mode", string(mode)).
		Int("devices", len(devices)).
		Msg("Compile run started")

	results := newPool(opts.Workers).run(ctx, len(devices), func(ctx context.Context, i int) DeviceResult {
		return c.compileDevice(ctx, runID, devices[i], opts)
	})

	run := &RunResult{
		RunID:    runID,
		Mode:     string(mode),
		Results:  results,
		Summary:  summarize(results),
		Duration: time.Since(started),
	}

	status := stores.RunStatusCompleted
	var runErr *string
	if ctx.Err() != nil {
		status = stores.RunStatusCancelled
		msg := ctx.Err().Error()
		runErr = &msg
	}

	if err := c.recordResults(ctx, runID, run, status, runErr); err != nil {
		telemetry.EndBuildContext(ctx, runID, string(stores.RunStatusFailed), err)
		return run, err
	}

	telemetry.EndBuildContext(ctx, runID, string(status), nil)
	c.logger.Info().
		Str("run_id", runID).
		Str("status", string(status)).
		Int("failed", run.Summary.Failed).
		Dur("duration", run.Duration).
		Msg("Compile run finished")

	return run, nil
}

// compileDevice runs the pipeline for one device. Cancellation is
// all-or-nothing: the device either compiles completely or fails with a
// cancelled result before starting, so no artifact is ever written from
// a half-finished pipeline.
func (c *Compiler) compileDevice(ctx context.Context, runID string, dev inventory.Device, opts Options) DeviceResult {
	role := fabric.ParseRole(dev.Role)
	res := DeviceResult{Hostname: dev.Hostname, Role: role}
	started := time.Now()

	ctx = telemetry.WithDeviceContext(ctx, runID, dev.Hostname, role.String())

	fail := func(cerr *CompileError) DeviceResult {
		res.Status = StatusFailed
		res.Err = cerr
		res.Duration = time.Since(started)
		c.logger.Error().
			Str("device", dev.Hostname).
			Str("class", string(cerr.Class)).
			Err(cerr).
			Msg("Device compile failed")
		telemetry.EndDeviceContext(ctx, runID, dev.Hostname, role.String(), string(StatusFailed), string(cerr.Class), cerr)
		return res
	}

	select {
	case <-ctx.Done():
		return fail(NewError(ErrorClassInternal, "compile cancelled", ctx.Err()).
			WithCode(ErrCodeCancelled).
			WithDevice(dev.Hostname))
	default:
	}

	rec, cerr := c.build(dev, opts.Overrides)
	if cerr != nil {
		return fail(cerr)
	}

	if c.policies != nil {
		pres, err := c.policies.EvaluateRecord(ctx, rec)
		if err != nil {
			return fail(NewError(ErrorClassPolicy, "policy evaluation failed", err).WithDevice(dev.Hostname))
		}
		if !pres.Allowed {
			var blocked []string
			for _, v := range pres.Violations {
				if v.Severity.Blocking() {
					blocked = append(blocked, fmt.Sprintf("%s: %s", v.Policy, v.Message))
				}
			}
			return fail(NewError(ErrorClassPolicy, "blocked by policy", nil).
				WithCode(ErrCodePolicyDenied).
				WithDevice(dev.Hostname).
				WithDetail("violations", blocked))
		}
	}

	text, cerr := c.renderRecord(dev.Hostname, rec)
	if cerr != nil {
		return fail(cerr)
	}
	content := []byte(text)
	res.SHA256 = artifact.Hash(content)
	res.Path = c.artifacts.ConfigPath(dev.Hostname)

	stored, err := c.artifacts.Read(dev.Hostname)
	exists := true
	if err != nil {
		if !errors.Is(err, artifact.ErrNotStored) {
			return fail(NewError(ErrorClassArtifact, "reading stored artifact failed", err).WithDevice(dev.Hostname))
		}
		exists = false
	}

	switch {
	case exists && bytes.Equal(stored, content):
		res.Status = StatusUnchanged
	case exists:
		diff, derr := c.artifacts.Diff(dev.Hostname, content)
		if derr != nil {
			return fail(NewError(ErrorClassArtifact, "diffing stored artifact failed", derr).WithDevice(dev.Hostname))
		}
		res.Diff = diff
		res.Status = StatusUpdated
		if opts.Check {
			res.Status = StatusWouldUpdate
		}
	default:
		res.Status = StatusCreated
		if opts.Check {
			res.Status = StatusWouldCreate
		}
	}

	if res.Status.Changed() {
		meta := artifact.Meta{Hostname: dev.Hostname, Role: role.String(), RunID: runID}
		if _, err := c.artifacts.Write(meta, content); err != nil {
			return fail(NewError(ErrorClassArtifact, "writing artifact failed", err).
				WithCode(ErrCodeWriteFailed).
				WithDevice(dev.Hostname))
		}
		if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
			tel.Metrics.RecordArtifactWrite(role.String(), len(content))
		}
	}

	res.Duration = time.Since(started)
	c.logger.Debug().
		Str("device", dev.Hostname).
		Str("status", string(res.Status)).
		Str("sha256", res.SHA256).
		Msg("Device compiled")
	telemetry.EndDeviceContext(ctx, runID, dev.Hostname, role.String(), string(res.Status), "", nil)
	return res
}

// Resolve merges the device's applicable context blobs, plus any
// command-line overrides, into a typed record with provenance.
func (c *Compiler) Resolve(dev inventory.Device, overrides map[string]any) (*resolver.Resolution, *CompileError) {
	blobs := c.inventory.BlobsFor(dev)
	if len(overrides) > 0 {
		blobs = append(blobs, resolver.Blob{
			Source:  overrideSource,
			Tier:    resolver.TierOverride,
			Payload: overrides,
		})
	}

	resolution, err := resolver.Resolve(dev.Identity(), blobs)
	if err != nil {
		cerr := NewError(ErrorClassResolve, "context resolution failed", err).WithDevice(dev.Hostname)
		var ambErr *resolver.AmbiguityError
		var blobErr *resolver.BlobError
		switch {
		case errors.As(err, &ambErr):
			cerr = cerr.WithCode(ErrCodeAmbiguous).WithDetail("conflicts", ambErr.Conflicts)
		case errors.As(err, &blobErr):
			cerr = cerr.WithCode(ErrCodeParse).WithPath(blobErr.Path)
		}
		return nil, cerr
	}
	return resolution, nil
}

// build resolves and validates one device's record.
func (c *Compiler) build(dev inventory.Device, overrides map[string]any) (*fabric.Record, *CompileError) {
	resolution, cerr := c.Resolve(dev, overrides)
	if cerr != nil {
		return nil, cerr
	}

	rec := resolution.Record
	issues := fabric.Validate(rec)
	if len(issues) == 0 {
		return rec, nil
	}

	details := make([]string, len(issues))
	for i, is := range issues {
		details[i] = is.String()
	}
	msg := fmt.Sprintf("record failed validation: %s", details[0])
	if len(details) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(details)-1)
	}

	cerr = NewError(ErrorClassValidate, msg, nil).
		WithDevice(dev.Hostname).
		WithDetail("issues", details)
	if missing := fabric.MissingPaths(issues); len(missing) > 0 {
		cerr = cerr.WithCode(ErrCodeMissingPaths).WithDetail("missing_paths", missing)
	} else {
		cerr = cerr.WithCode(ErrCodeInvalidValue)
	}
	return nil, cerr
}

// renderRecord turns a validated record into configuration text.
func (c *Compiler) renderRecord(hostname string, rec *fabric.Record) (string, *CompileError) {
	text, err := render.Config(rec)
	if err != nil {
		cerr := NewError(ErrorClassRender, "render refused the record", err).WithDevice(hostname)
		var rerr *render.Error
		if errors.As(err, &rerr) {
			cerr = cerr.WithPath(rerr.Path).WithCode(ErrCodeDanglingRef)
		}
		return "", cerr
	}
	return text, nil
}

// Render compiles one device's configuration text without touching the
// artifact store or the ledger. The policy gate is not applied; Render
// serves inspection commands that want the text a build would produce.
func (c *Compiler) Render(dev inventory.Device, overrides map[string]any) (string, *CompileError) {
	rec, cerr := c.build(dev, overrides)
	if cerr != nil {
		return "", cerr
	}
	return c.renderRecord(dev.Hostname, rec)
}

// ValidateFleet resolves and validates every selected device, runs the
// per-device policy rules, and then evaluates the cross-device rules
// over all records that resolved. Nothing is rendered or written.
func (c *Compiler) ValidateFleet(ctx context.Context, opts Options) (*FleetReport, error) {
	devices, err := c.Select(opts)
	if err != nil {
		return nil, err
	}

	report := &FleetReport{Devices: make([]DeviceFindings, len(devices))}
	perDevice := make(map[string]*policy.Result, len(devices))
	var records []*fabric.Record

	for i, d := range devices {
		f := DeviceFindings{Hostname: d.Hostname, Role: fabric.ParseRole(d.Role)}

		resolution, cerr := c.Resolve(d, opts.Overrides)
		if cerr != nil {
			f.Err = cerr
			report.Devices[i] = f
			continue
		}

		rec := resolution.Record
		f.Issues = fabric.Validate(rec)
		records = append(records, rec)

		if c.policies != nil {
			pres, perr := c.policies.EvaluateRecord(ctx, rec)
			if perr != nil {
				f.Err = NewError(ErrorClassPolicy, "policy evaluation failed", perr).WithDevice(d.Hostname)
			} else {
				f.Policy = pres
				perDevice[d.Hostname] = pres
			}
		}

		report.Devices[i] = f
	}

	if c.policies != nil {
		fabricRes, err := c.policies.EvaluateFabric(ctx, records)
		if err != nil {
			return nil, NewError(ErrorClassPolicy, "fabric policy evaluation failed", err)
		}
		report.Policy = policy.BuildReport(perDevice, fabricRes)
	}

	return report, nil
}

// Drift renders each selected device afresh and classifies its stored
// artifact: clean, stale against new inputs, modified on disk, or
// missing entirely.
func (c *Compiler) Drift(ctx context.Context, opts Options) ([]DriftResult, error) {
	devices, err := c.Select(opts)
	if err != nil {
		return nil, err
	}

	out := make([]DriftResult, len(devices))
	for i, d := range devices {
		out[i].Hostname = d.Hostname

		text, cerr := c.Render(d, opts.Overrides)
		if cerr != nil {
			out[i].Err = cerr
			continue
		}

		rep, derr := c.artifacts.Drift(d.Hostname, []byte(text))
		if derr != nil {
			out[i].Err = NewError(ErrorClassArtifact, "drift check failed", derr).WithDevice(d.Hostname)
			continue
		}
		out[i].Report = rep

		if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
			tel.Metrics.RecordDriftCheck(string(rep.Kind))
			if rep.Kind != artifact.DriftClean {
				_ = tel.Events.PublishDriftDetected(d.Hostname, string(rep.Kind))
			}
		}
	}
	return out, nil
}

// createRun opens the run's ledger entry. The write uses a detached
// context so a run cancelled at birth still leaves a cancelled row
// rather than no row.
func (c *Compiler) createRun(ctx context.Context, runID string, mode stores.RunMode, opts Options, total int) error {
	if c.ledger == nil {
		return nil
	}
	run := &stores.Run{
		ID:           runID,
		Mode:         mode,
		Selector:     describeSelection(opts),
		Status:       stores.RunStatusRunning,
		DevicesTotal: total,
		StartedAt:    time.Now().UTC(),
		Metadata:     "{}",
	}
	if err := c.ledger.CreateRun(context.WithoutCancel(ctx), run); err != nil {
		return NewError(ErrorClassStore, "recording run failed", err).WithCode(ErrCodeWriteFailed)
	}
	return nil
}

// recordResults persists the per-device outcomes and closes the run's
// ledger entry. Writes use a detached context so a cancelled run still
// records what it finished.
func (c *Compiler) recordResults(ctx context.Context, runID string, run *RunResult, status stores.RunStatus, runErr *string) error {
	if c.ledger == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	for i, r := range run.Results {
		dr := &stores.DeviceResult{
			ID:         uuid.New().String(),
			RunID:      runID,
			Seq:        i,
			Hostname:   r.Hostname,
			Role:       r.Role.String(),
			Status:     stores.DeviceStatus(r.Status),
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			class := string(r.Err.Class)
			msg := r.Err.Error()
			dr.ErrorClass = &class
			dr.Error = &msg
		}
		if r.SHA256 != "" {
			sha := r.SHA256
			dr.ArtifactSHA256 = &sha
		}
		if r.Diff != "" {
			diff := r.Diff
			dr.Diff = &diff
		}
		if err := c.ledger.CreateDeviceResult(ctx, dr); err != nil {
			return NewError(ErrorClassStore, "recording device result failed", err).
				WithCode(ErrCodeWriteFailed).
				WithDevice(r.Hostname)
		}

		if !r.Status.Changed() {
			continue
		}
		meta, err := c.artifacts.ReadMeta(r.Hostname)
		if err != nil {
			return NewError(ErrorClassStore, "reading artifact metadata failed", err).WithDevice(r.Hostname)
		}
		art := &stores.Artifact{
			Hostname:   meta.Hostname,
			Role:       meta.Role,
			RunID:      meta.RunID,
			SHA256:     meta.SHA256,
			Size:       meta.Size,
			RenderedAt: meta.RenderedAt,
		}
		if err := c.ledger.UpsertArtifact(ctx, art); err != nil {
			return NewError(ErrorClassStore, "recording artifact failed", err).
				WithCode(ErrCodeWriteFailed).
				WithDevice(r.Hostname)
		}
	}

	if err := c.ledger.UpdateRunStatus(ctx, runID, status, runErr); err != nil {
		return NewError(ErrorClassStore, "updating run status failed", err).WithCode(ErrCodeWriteFailed)
	}
	return nil
}

// describeSelection renders the run's selection for the ledger row.
func describeSelection(opts Options) string {
	switch {
	case len(opts.Hostnames) > 0 && opts.Selector != "":
		return fmt.Sprintf("%s where %s", strings.Join(opts.Hostnames, ","), opts.Selector)
	case len(opts.Hostnames) > 0:
		return strings.Join(opts.Hostnames, ",")
	default:
		return opts.Selector
	}
}
