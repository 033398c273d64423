package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/compiler"
)

// diffResult is the per-device outcome of a diff pass.
type diffResult struct {
	Hostname string                 `json:"hostname"`
	Diff     string                 `json:"diff,omitempty"`
	Err      *compiler.CompileError `json:"error,omitempty"`
}

func newDiffCommand() *cobra.Command {
	var (
		selector  string
		hostnames []string
		sets      []string
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what a build would change against stored artifacts",
		Long: `Render the selected devices in memory and diff the output against
the stored artifacts. Nothing is written; devices with no stored
artifact diff against an empty config.`,
		Example: `  # Diff the whole fleet
  loom diff

  # Diff one device with an override applied
  loom diff -d leaf11 --set routing.maximum_paths=8`,
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

			devices, err := e.compiler.Select(compiler.Options{Selector: selector, Hostnames: hostnames})
			if err != nil {
				return err
			}

			results := make([]diffResult, 0, len(devices))
			failed, changed := 0, 0
			for _, dev := range devices {
				text, cerr := e.compiler.Render(dev, overrides)
				if cerr != nil {
					failed++
					results = append(results, diffResult{Hostname: dev.Hostname, Err: cerr})
					continue
				}
				d, derr := e.artifacts.Diff(dev.Hostname, []byte(text))
				if derr != nil {
					failed++
					results = append(results, diffResult{
						Hostname: dev.Hostname,
						Err: compiler.NewError(compiler.ErrorClassArtifact, "diff against stored artifact failed", derr).
							WithDevice(dev.Hostname),
					})
					continue
				}
				if d != "" {
					changed++
				}
				results = append(results, diffResult{Hostname: dev.Hostname, Diff: d})
			}

			if jsonOutput {
				if err := printJSON(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Err != nil {
						fmt.Printf("✗ %s: %v\n", r.Hostname, r.Err)
						continue
					}
					if r.Diff != "" {
						fmt.Print(r.Diff)
					}
				}
				if changed == 0 && failed == 0 {
					fmt.Printf("No differences across %d devices\n", len(results))
				} else {
					fmt.Printf("\n%d of %d devices differ\n", changed, len(results))
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d devices failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&selector, "selector", "s", "", "device selector, e.g. role=leaf or site=dc1")
	cmd.Flags().StringSliceVarP(&hostnames, "device", "d", nil, "diff only the named devices (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override-tier value as path=value (repeatable)")

	return cmd
}
