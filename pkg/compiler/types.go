package compiler

import (
	"time"

	"github.com/openloom/openloom/pkg/artifact"
	"github.com/openloom/openloom/pkg/fabric"
	"github.com/openloom/openloom/pkg/policy"
)

// Status is the outcome of one device within a run.
type Status string

const (
	// StatusCreated means no artifact was stored and one was written.
	StatusCreated Status = "created"

	// StatusUpdated means the stored artifact differed and was replaced.
	StatusUpdated Status = "updated"

	// StatusUnchanged means the fresh render is byte-identical to the
	// stored artifact. Nothing was written in either mode.
	StatusUnchanged Status = "unchanged"

	// StatusWouldCreate is the check-mode counterpart of created.
	StatusWouldCreate Status = "would-create"

	// StatusWouldUpdate is the check-mode counterpart of updated.
	StatusWouldUpdate Status = "would-update"

	// StatusFailed means a pipeline stage rejected the device.
	StatusFailed Status = "failed"
)

// Changed reports whether the artifact on disk was modified.
func (s Status) Changed() bool {
	return s == StatusCreated || s == StatusUpdated
}

// WouldChange reports whether a build-mode run would have modified the
// artifact.
func (s Status) WouldChange() bool {
	return s == StatusWouldCreate || s == StatusWouldUpdate
}

// Options configure one compile run.
type Options struct {
	// Check renders, diffs, and records results without writing
	// artifacts.
	Check bool

	// Selector is a tag expression restricting the run. Empty selects
	// every inventory device.
	Selector string

	// Hostnames restricts the run to the named devices, in the order
	// given. Applied on top of Selector when both are set.
	Hostnames []string

	// Overrides is an override-tier payload applied above every blob,
	// shaped like a context payload.
	Overrides map[string]any

	// RunID identifies the run in the ledger. Assigned when empty.
	RunID string

	// Workers bounds compile parallelism. Defaults to DefaultWorkers.
	Workers int
}

// DeviceResult is the outcome of one device, reported in input order.
type DeviceResult struct {
	Hostname string        `json:"hostname"`
	Role     fabric.Role   `json:"role"`
	Status   Status        `json:"status"`
	SHA256   string        `json:"sha256,omitempty"`
	Path     string        `json:"path,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Err      *CompileError `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the device was rejected.
func (r DeviceResult) Failed() bool {
	return r.Status == StatusFailed
}

// RunResult is the outcome of a whole compile run. Results follow the
// input order of the selection regardless of completion order.
type RunResult struct {
	RunID    string         `json:"run_id"`
	Mode     string         `json:"mode"`
	Results  []DeviceResult `json:"results"`
	Summary  Summary        `json:"summary"`
	Duration time.Duration  `json:"duration"`
}

// Failed returns the results of rejected devices, in input order.
func (r *RunResult) Failed() []DeviceResult {
	var failed []DeviceResult
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary counts device outcomes by status.
type Summary struct {
	Total       int `json:"total"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	WouldCreate int `json:"would_create"`
	WouldUpdate int `json:"would_update"`
	Failed      int `json:"failed"`
}

func summarize(results []DeviceResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusCreated:
			s.Created++
		case StatusUpdated:
			s.Updated++
		case StatusUnchanged:
			s.Unchanged++
		case StatusWouldCreate:
			s.WouldCreate++
		case StatusWouldUpdate:
			s.WouldUpdate++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// DeviceFindings collects everything a validation pass discovered about
// one device.
type DeviceFindings struct {
	Hostname string         `json:"hostname"`
	Role     fabric.Role    `json:"role"`
	Err      *CompileError  `json:"error,omitempty"`
	Issues   []fabric.Issue `json:"issues,omitempty"`
	Policy   *policy.Result `json:"policy,omitempty"`
}

// OK reports whether the device would survive a build.
func (f DeviceFindings) OK() bool {
	if f.Err != nil || len(f.Issues) > 0 {
		return false
	}
	return f.Policy == nil || f.Policy.Allowed
}

// FleetReport is the outcome of a fleet-wide validation pass. Devices
// follow the input order of the selection.
type FleetReport struct {
	Devices []DeviceFindings `json:"devices"`
	Policy  *policy.Report   `json:"policy,omitempty"`
}

// OK reports whether every device passed and no cross-device rule fired
// a blocking violation.
func (r *FleetReport) OK() bool {
	for _, f := range r.Devices {
		if !f.OK() {
			return false
		}
	}
	if r.Policy != nil && r.Policy.Fabric != nil && !r.Policy.Fabric.Allowed {
		return false
	}
	return true
}

// DriftResult pairs a device with its drift classification. A device
// whose configuration can no longer be rendered reports the compile
// error instead of a classification.
type DriftResult struct {
	Hostname string                `json:"hostname"`
	Report   *artifact.DriftReport `json:"report,omitempty"`
	Err      *CompileError         `json:"error,omitempty"`
}
