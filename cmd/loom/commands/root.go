package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// cliVersion feeds the telemetry service identity.
	cliVersion string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	cliVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Loom - Declarative Network Configuration Compiler",
		Long: `Loom compiles declarative network intent into per-device switch
configurations.

Features:
  - Tiered context resolution with strict precedence
  - Fail-closed role validation before any render
  - Deterministic EOS-style configuration rendering
  - Atomic artifact store with diff and drift detection
  - Parallel per-device compilation with check mode
  - Policy gate (Rego) over records and the whole fabric
  - Compile ledger with per-run and per-device history`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),

		// Runtime failures are logged by main; usage noise helps nobody
		// mid-operation.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "workspace config file path (default loom.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newDriftCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newMirrorCommand())

	return rootCmd
}
