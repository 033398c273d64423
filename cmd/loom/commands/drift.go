package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/artifact"
	"github.com/openloom/openloom/pkg/compiler"
)

func newDriftCommand() *cobra.Command {
	var (
		selector    string
		hostnames   []string
		sets        []string
		failOnDrift bool
		showDiff    bool
	)

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare stored artifacts against freshly compiled output",
		Long: `Recompile the selected devices in memory and classify each stored
artifact against the result:

  clean     stored artifact matches the current compile
  stale     contexts changed since the artifact was written
  modified  artifact content was edited out of band
  missing   no stored artifact for the device

Nothing is written. Use drift in a scheduled job with --fail-on-drift
to alert when the store no longer reflects declared intent.`,
		Example: `  # Check the whole fleet for drift
  loom drift

  # Fail when anything drifted, showing the diffs
  loom drift --fail-on-drift --diff`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}

			e, cleanup, err := openEnv(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := e.compiler.Drift(e.ctx, compiler.Options{
				Selector:  selector,
				Hostnames: hostnames,
				Overrides: overrides,
			})
			if err != nil {
				return err
			}

			failed, drifted := 0, 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					continue
				}
				if r.Report.Kind != artifact.DriftClean {
					drifted++
				}
			}

			if jsonOutput {
				if err := printJSON(results); err != nil {
					return err
				}
			} else {
				printDrift(results, showDiff, drifted)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d devices failed", failed, len(results))
			}
			if failOnDrift && drifted > 0 {
				return fmt.Errorf("drift detected on %d of %d devices", drifted, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&selector, "selector", "s", "", "device selector, e.g. role=leaf or site=dc1")
	cmd.Flags().StringSliceVarP(&hostnames, "device", "d", nil, "check only the named devices (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override-tier value as path=value (repeatable)")
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit non-zero when any device is not clean")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "include unified diffs for drifted devices")

	return cmd
}

func printDrift(results []compiler.DriftResult, showDiff bool, drifted int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "HOSTNAME\tDRIFT\tDETAIL")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\terror\t%v\n", r.Hostname, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Hostname, r.Report.Kind, r.Report.Detail)
	}
	w.Flush()

	if showDiff {
		for _, r := range results {
			if r.Err == nil && r.Report.Diff != "" {
				fmt.Printf("\n%s", r.Report.Diff)
			}
		}
	}

	if drifted == 0 {
		fmt.Printf("\nNo drift across %d devices\n", len(results))
	} else {
		fmt.Printf("\n%d of %d devices drifted\n", drifted, len(results))
	}
}
