package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/compiler"
)

func newValidateCommand() *cobra.Command {
	var (
		selector  string
		hostnames []string
		sets      []string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate resolved records without rendering or writing",
		Long: `Resolve and validate the selected devices.

Every device is checked against its role requirements and the loaded
policies. Nothing is rendered or written; the command reports all
findings across the fleet instead of stopping at the first failure.`,
		Example: `  # Validate the whole fleet
  loom validate

  # Validate the leaves of one site
  loom validate --selector role=leaf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}

			e, cleanup, err := openEnv(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := e.compiler.ValidateFleet(e.ctx, compiler.Options{
				Selector:  selector,
				Hostnames: hostnames,
				Overrides: overrides,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				printFleetReport(report)
			}

			if report.OK() {
				return nil
			}
			failed := 0
			for _, f := range report.Devices {
				if !f.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d devices failed validation", failed, len(report.Devices))
			}
			return fmt.Errorf("fabric policy violations found")
		},
	}

	cmd.Flags().StringVarP(&selector, "selector", "s", "", "device selector, e.g. role=leaf or site=dc1")
	cmd.Flags().StringSliceVarP(&hostnames, "device", "d", nil, "validate only the named devices (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override-tier value as path=value (repeatable)")

	return cmd
}

func printFleetReport(report *compiler.FleetReport) {
	for _, f := range report.Devices {
		mark := "✓"
		if !f.OK() {
			mark = "✗"
		}
		fmt.Printf("%s %s (%s)\n", mark, f.Hostname, f.Role)
		if f.Err != nil {
			fmt.Printf("    %v\n", f.Err)
		}
		for _, issue := range f.Issues {
			fmt.Printf("    %s\n", issue)
		}
		if f.Policy != nil {
			for _, v := range f.Policy.Violations {
				fmt.Printf("    policy %s [%s]: %s\n", v.Policy, v.Severity, v.Message)
			}
			for _, warn := range f.Policy.Warnings {
				fmt.Printf("    warning: %s\n", warn)
			}
		}
	}

	if report.Policy != nil && report.Policy.Fabric != nil && len(report.Policy.Fabric.Violations) > 0 {
		fmt.Printf("\nFabric policy:\n")
		for _, v := range report.Policy.Fabric.Violations {
			if v.Device != "" {
				fmt.Printf("    %s [%s] %s: %s\n", v.Device, v.Severity, v.Policy, v.Message)
			} else {
				fmt.Printf("    [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
			}
		}
	}

	if report.OK() {
		fmt.Printf("\n✅ %d devices validated\n", len(report.Devices))
	}
}
