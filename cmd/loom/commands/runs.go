package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/stores"
)

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the compile ledger",
		Long: `Inspect recorded compile runs.

These commands read only the ledger, so they work even when the
inventory or contexts are currently broken.`,
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())

	return cmd
}

// openLedgerOnly loads the workspace config and opens the ledger,
// skipping inventory and telemetry entirely.
func openLedgerOnly(ctx context.Context) (*stores.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openLedger(ctx, cfg)
}

func newRunsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Example: `  # The last 20 runs
  loom runs list

  # The last 5 runs as JSON
  loom runs list --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ledger, err := openLedgerOnly(ctx)
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tMODE\tSTATUS\tDEVICES\tFAILED\tSTARTED\tDURATION")
			for _, r := range runs {
				dur := "-"
				if r.CompletedAt != nil {
					dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.ID, r.Mode, r.Status, r.DevicesTotal, r.DevicesFailed,
					r.StartedAt.Format("2006-01-02 15:04:05"), dur)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	var withEvents bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's device results",
		Example: `  # Show a run with its per-device outcomes
  loom runs show 01JD4X2M9QK8

  # Include the run's recorded events
  loom runs show 01JD4X2M9QK8 --events`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ledger, err := openLedgerOnly(ctx)
			if err != nil {
				return err
			}
			defer ledger.Close()

			run, err := ledger.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			results, err := ledger.ListDeviceResultsByRun(ctx, run.ID)
			if err != nil {
				return err
			}
			var events []*stores.Event
			if withEvents {
				events, err = ledger.GetEvents(ctx, &run.ID, nil, nil, 500, 0)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return printJSON(struct {
					Run     *stores.Run            `json:"run"`
					Results []*stores.DeviceResult `json:"results"`
					Events  []*stores.Event        `json:"events,omitempty"`
				}{run, results, events})
			}

			printRunDetail(run, results)
			if withEvents {
				printEvents(events)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withEvents, "events", false, "include the run's recorded events")

	return cmd
}

func printRunDetail(run *stores.Run, results []*stores.DeviceResult) {
	fmt.Printf("Run %s (%s)\n", run.ID, run.Mode)
	fmt.Printf("Status:    %s\n", run.Status)
	if run.Selector != "" {
		fmt.Printf("Selector:  %s\n", run.Selector)
	}
	fmt.Printf("Started:   %s\n", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", run.CompletedAt.Format(time.RFC3339))
	}
	if run.Error != nil {
		fmt.Printf("Error:     %s\n", *run.Error)
	}

	if len(results) == 0 {
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "HOSTNAME\tROLE\tSTATUS\tSHA256\tDURATION")
	for _, r := range results {
		sha := "-"
		if r.ArtifactSHA256 != nil && len(*r.ArtifactSHA256) >= 12 {
			sha = (*r.ArtifactSHA256)[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\n", r.Hostname, r.Role, r.Status, sha, r.DurationMS)
	}
	w.Flush()

	for _, r := range results {
		if r.Error == nil {
			continue
		}
		class := ""
		if r.ErrorClass != nil {
			class = fmt.Sprintf(" [%s]", *r.ErrorClass)
		}
		fmt.Printf("\n✗ %s%s: %s\n", r.Hostname, class, *r.Error)
	}
}

func printEvents(events []*stores.Event) {
	if len(events) == 0 {
		fmt.Println("\nNo events recorded")
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLEVEL\tTYPE\tHOSTNAME\tMESSAGE")
	for _, ev := range events {
		hostname := "-"
		if ev.Hostname != nil {
			hostname = *ev.Hostname
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Format("15:04:05.000"), ev.Level, ev.Type, hostname, ev.Message)
	}
	w.Flush()
}
