package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openloom/openloom/pkg/artifact"
	"github.com/openloom/openloom/pkg/compiler"
	"github.com/openloom/openloom/pkg/mirror"
)

func newMirrorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Push the artifact store to the archive host",
		Long: `Push every stored artifact and its metadata sidecar to the
configured SFTP archive host.

Builds push automatically when mirror.enabled is set in loom.yaml; this
command re-pushes the whole store on demand, for example after
restoring a workspace or changing the archive target.`,
		Example: `  # Push all stored artifacts
  loom mirror`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tel, err := newTelemetry(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tel.Shutdown(shutdownCtx)
			}()
			ctx := tel.WithContext(cmd.Context())

			client, err := mirror.New(cfg.Mirror.ToMirror(), tel.Logger.Zerolog())
			if err != nil {
				return compiler.NewError(compiler.ErrorClassMirror, "mirror configuration rejected", err)
			}
			res, err := client.Push(ctx, artifact.NewStore(cfg.Artifacts.Dir), "")
			if err != nil {
				return compiler.NewError(compiler.ErrorClassMirror, "artifact mirror failed", err)
			}

			if jsonOutput {
				return printJSON(struct {
					Host      string `json:"host"`
					RemoteDir string `json:"remote_dir"`
					Files     int    `json:"files"`
					Bytes     int64  `json:"bytes"`
					Duration  string `json:"duration"`
				}{res.Host, res.RemoteDir, res.Files, res.Bytes, res.Duration.String()})
			}
			fmt.Printf("Mirrored %d files (%d bytes) to %s:%s in %s\n",
				res.Files, res.Bytes, res.Host, res.RemoteDir, res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	return cmd
}
