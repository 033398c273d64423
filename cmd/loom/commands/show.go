package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/compiler"
	"github.com/openloom/openloom/pkg/fabric"
	"github.com/openloom/openloom/pkg/resolver"
)

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Inspect resolved records and rendered configurations",
	}

	cmd.AddCommand(newShowRecordCommand())
	cmd.AddCommand(newShowConfigCommand())

	return cmd
}

func newShowRecordCommand() *cobra.Command {
	var (
		sets       []string
		provenance bool
	)

	cmd := &cobra.Command{
		Use:   "record <hostname>",
		Short: "Show a device's resolved record",
		Long: `Resolve one device's record across all context tiers and print it.

With --provenance each resolved path is annotated with the source, tier,
and weight of the blob that supplied its value.`,
		Example: `  # Show the resolved record as YAML
  loom show record leaf11

  # Show where each value came from
  loom show record leaf11 --provenance`,
		Args: cobra.ExactArgs(1),
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

			devices, err := e.compiler.Select(compiler.Options{Hostnames: args})
			if err != nil {
				return err
			}
			res, cerr := e.compiler.Resolve(devices[0], overrides)
			if cerr != nil {
				return cerr
			}

			if jsonOutput {
				if provenance {
					return printJSON(struct {
						Record     *fabric.Record        `json:"record"`
						Provenance []resolver.Provenance `json:"provenance"`
					}{res.Record, res.Provenance})
				}
				return printJSON(res.Record)
			}
			if provenance {
				printProvenance(res.Provenance)
				fmt.Println()
			}
			return printYAML(res.Record)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "override-tier value as path=value (repeatable)")
	cmd.Flags().BoolVar(&provenance, "provenance", false, "annotate each path with its winning blob")

	return cmd
}

func printProvenance(provenance []resolver.Provenance) {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTIER\tWEIGHT\tSOURCE")
	for _, p := range provenance {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Path, p.Tier, p.Weight, p.Source)
	}
	w.Flush()
}

func newShowConfigCommand() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "config <hostname>",
		Short: "Show a device's rendered configuration",
		Long: `Resolve, validate, and render one device's configuration to stdout.

The output is exactly what a build would write to the artifact store,
including the generation banner.`,
		Example: `  # Print the rendered config
  loom show config leaf11

  # Render with an override applied on top
  loom show config leaf11 --set routing.maximum_paths=8`,
		Args: cobra.ExactArgs(1),
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

			devices, err := e.compiler.Select(compiler.Options{Hostnames: args})
			if err != nil {
				return err
			}
			text, cerr := e.compiler.Render(devices[0], overrides)
			if cerr != nil {
				return cerr
			}

			if jsonOutput {
				return printJSON(struct {
					Hostname string      `json:"hostname"`
					Role     fabric.Role `json:"role"`
					Config   string      `json:"config"`
				}{devices[0].Hostname, fabric.ParseRole(devices[0].Role), text})
			}
			fmt.Print(text)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "override-tier value as path=value (repeatable)")

	return cmd
}
