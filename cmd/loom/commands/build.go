package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/compiler"
	"github.com/openloom/openloom/pkg/inventory"
	"github.com/openloom/openloom/pkg/mirror"
)

func newBuildCommand() *cobra.Command {
	var (
		check      bool
		selector   string
		hostnames  []string
		sets       []string
		workers    int
		pushAfter  bool
		watchFiles bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile device configurations and store the artifacts",
		Long: `Compile configurations for the selected devices.

Each device is resolved, validated, rendered, and written to the
artifact store in parallel. Per-device failures are reported but do not
stop the rest of the fleet. With --check nothing is written; the run
reports what would change instead.`,
		Example: `  # Build the whole fleet
  loom build

  # Preview changes for one site without writing artifacts
  loom build --check --selector site=dc1

  # Build two devices with a run-time override on top
  loom build -d leaf11 -d leaf12 --set routing.maximum_paths=8

  # Rebuild automatically whenever inventory or contexts change
  loom build --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}

			e, cleanup, err := openEnv(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := compiler.Options{
				Check:     check,
				Selector:  selector,
				Hostnames: hostnames,
				Overrides: overrides,
				Workers:   workers,
			}
			if opts.Workers <= 0 {
				opts.Workers = e.cfg.Build.Workers
			}
			doMirror := pushAfter || e.cfg.Mirror.Enabled

			if watchFiles {
				return runWatch(e, opts, doMirror)
			}
			return runBuild(e, opts, doMirror)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "report what would change without writing artifacts")
	cmd.Flags().StringVarP(&selector, "selector", "s", "", "device selector, e.g. role=leaf or site=dc1")
	cmd.Flags().StringSliceVarP(&hostnames, "device", "d", nil, "build only the named devices (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override-tier value as path=value (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel device workers (default from loom.yaml)")
	cmd.Flags().BoolVar(&pushAfter, "mirror", false, "push artifacts to the archive host after the run (automatic when mirror.enabled is set)")
	cmd.Flags().BoolVar(&watchFiles, "watch", false, "keep running and rebuild on inventory or context changes")

	return cmd
}

// runBuild executes one compile run, reports it, and optionally pushes
// the artifact store afterwards. Runs with failed devices return an
// error and skip the push.
func runBuild(e *env, opts compiler.Options, doMirror bool) error {
	run, err := e.compiler.Run(e.ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(run); err != nil {
			return err
		}
	} else {
		printRun(run)
	}

	if run.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d devices failed", run.Summary.Failed, run.Summary.Total)
	}
	if doMirror && !opts.Check {
		return pushArtifacts(e, run.RunID)
	}
	return nil
}

func printRun(run *compiler.RunResult) {
	fmt.Printf("Run %s (%s)\n\n", run.RunID, run.Mode)

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "HOSTNAME\tROLE\tSTATUS\tSHA256\tDURATION")
	for _, r := range run.Results {
		sha := "-"
		if len(r.SHA256) >= 12 {
			sha = r.SHA256[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Hostname, r.Role, r.Status, sha, r.Duration.Round(time.Millisecond))
	}
	w.Flush()

	for _, r := range run.Failed() {
		fmt.Printf("\n✗ %s: %v\n", r.Hostname, r.Err)
	}

	for _, r := range run.Results {
		if r.Status.WouldChange() && r.Diff != "" {
			fmt.Printf("\n%s", r.Diff)
		}
	}

	s := run.Summary
	var parts []string
	if s.Created > 0 {
		parts = append(parts, fmt.Sprintf("%d created", s.Created))
	}
	if s.Updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", s.Updated))
	}
	if s.WouldCreate > 0 {
		parts = append(parts, fmt.Sprintf("%d would create", s.WouldCreate))
	}
	if s.WouldUpdate > 0 {
		parts = append(parts, fmt.Sprintf("%d would update", s.WouldUpdate))
	}
	parts = append(parts, fmt.Sprintf("%d unchanged", s.Unchanged))
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	fmt.Printf("\n%d devices: %s (%s)\n",
		s.Total, strings.Join(parts, ", "), run.Duration.Round(time.Millisecond))
}

// pushArtifacts pushes the artifact store to the configured archive
// host over SFTP.
func pushArtifacts(e *env, runID string) error {
	client, err := mirror.New(e.cfg.Mirror.ToMirror(), e.logger)
	if err != nil {
		return compiler.NewError(compiler.ErrorClassMirror, "mirror configuration rejected", err)
	}
	res, err := client.Push(e.ctx, e.artifacts, runID)
	if err != nil {
		return compiler.NewError(compiler.ErrorClassMirror, "artifact mirror failed", err)
	}
	fmt.Printf("\nMirrored %d files (%d bytes) to %s:%s\n", res.Files, res.Bytes, res.Host, res.RemoteDir)
	return nil
}

// runWatch rebuilds on every inventory or context change until the
// command is interrupted. Build failures are logged and the watch keeps
// going; a broken inventory keeps the previous one active.
func runWatch(e *env, opts compiler.Options, doMirror bool) error {
	if err := e.tel.StartMetricsServer(); err != nil {
		return err
	}

	build := func() {
		if err := runBuild(e, opts, doMirror); err != nil {
			e.logger.Error().Err(err).Msg("Build failed")
		}
	}
	build()

	reload := func() {
		inv, err := inventory.NewLoader(e.logger).Load(e.ctx, e.cfg.Inventory.Devices, e.cfg.Inventory.Contexts)
		if err != nil {
			e.logger.Error().Err(err).Msg("Inventory reload failed, keeping previous inventory")
			return
		}
		e.inv = inv
		e.compiler = compiler.New(inv, e.artifacts, e.policies, e.ledger, e.logger)
		build()
	}

	watcher := inventory.NewWatcher(e.logger)
	defer watcher.Close()
	if err := watcher.Watch(e.ctx, []string{e.cfg.Inventory.Devices, e.cfg.Inventory.Contexts}, reload); err != nil {
		return err
	}

	<-e.ctx.Done()
	return nil
}
