// Package mirror copies rendered artifacts to an archive host over
// SFTP. The archive is a plain directory copy for operators and
// external tooling, not a version store; history stays with whatever
// tracks the workspace.
package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/openloom/openloom/pkg/artifact"
	"github.com/openloom/openloom/pkg/telemetry"
)

// TransferError reports a failed mirror operation.
type TransferError struct {
	// Op is the operation that failed ("connect", "mkdir", "upload").
	Op string

	// Path is the file or directory involved, when one was.
	Path string

	// Err is the underlying error.
	Err error
}

func (e *TransferError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("mirror %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("mirror %s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Result summarizes one completed mirror push.
type Result struct {
	// Host is the archive endpoint the artifacts were copied to.
	Host string

	// RemoteDir is the directory that received the files.
	RemoteDir string

	// Files is the number of files uploaded, sidecars included.
	Files int

	// Bytes is the total number of bytes transferred.
	Bytes int64

	// Duration is the total push time including the connection.
	Duration time.Duration
}

// Client pushes the artifact directory to an archive host.
type Client struct {
	config *Config
	logger zerolog.Logger
}

// New creates a mirror client. The configuration is validated up front
// so a misconfigured archive endpoint surfaces before any transfer is
// attempted.
func New(config *Config, logger zerolog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, &TransferError{Op: "configure", Err: err}
	}
	return &Client{
		config: config,
		logger: logger.With().Str("component", "mirror").Logger(),
	}, nil
}

// Push uploads every stored artifact and its sidecar to the archive
// host. An empty store is an error: mirroring before anything was
// built is an operator mistake, not a successful no-op. The run id
// tags the emitted telemetry and may be empty for a standalone mirror
// invocation.
func (c *Client) Push(ctx context.Context, store *artifact.Store, runID string) (*Result, error) {
	metas, err := store.List()
	if err != nil {
		return nil, &TransferError{Op: "list", Path: store.Dir(), Err: err}
	}
	if len(metas) == 0 {
		return nil, &TransferError{Op: "list", Path: store.Dir(), Err: fmt.Errorf("no artifacts to mirror")}
	}

	start := time.Now()
	ic := telemetry.StartOperation(ctx, "mirror.push",
		telemetry.AttrMirrorHost.String(c.config.Host))
	result, err := c.push(ic.Ctx, store, metas)
	ic.End(err)

	tel := telemetry.FromTelemetryContext(ctx)
	if err != nil {
		if tel != nil {
			tel.Metrics.RecordMirrorTransfer("failed")
			_ = tel.Events.PublishMirrorFailed(runID, c.config.Host, err.Error())
		}
		c.logger.Error().Err(err).Str("host", c.config.Address()).Msg("Mirror push failed")
		return nil, err
	}

	result.Duration = time.Since(start)
	if tel != nil {
		tel.Metrics.RecordMirrorTransfer("completed")
		_ = tel.Events.PublishMirrorCompleted(runID, c.config.Host, result.Files, result.Bytes)
	}
	c.logger.Info().
		Str("host", c.config.Address()).
		Str("dir", c.config.RemoteDir).
		Int("files", result.Files).
		Int64("bytes", result.Bytes).
		Dur("duration", result.Duration).
		Msg("Artifacts mirrored")
	return result, nil
}

func (c *Client) push(ctx context.Context, store *artifact.Store, metas []artifact.Meta) (*Result, error) {
	sshClient, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &TransferError{Op: "sftp", Err: err}
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(c.config.RemoteDir); err != nil {
		return nil, &TransferError{Op: "mkdir", Path: c.config.RemoteDir, Err: err}
	}

	result := &Result{Host: c.config.Address(), RemoteDir: c.config.RemoteDir}
	for _, meta := range metas {
		select {
		case <-ctx.Done():
			return nil, &TransferError{Op: "upload", Err: ctx.Err()}
		default:
		}

		for _, localPath := range []string{store.ConfigPath(meta.Hostname), store.MetaPath(meta.Hostname)} {
			written, err := c.upload(ctx, sftpClient, localPath)
			if err != nil {
				return nil, err
			}
			result.Files++
			result.Bytes += written
		}
	}
	return result, nil
}

// dial opens the SSH connection, honouring context cancellation while
// the handshake is in flight. A dial that completes after the context
// fired is closed rather than leaked.
func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	clientConfig, err := c.config.ClientConfig()
	if err != nil {
		return nil, &TransferError{Op: "connect", Err: err}
	}

	address := c.config.Address()
	c.logger.Debug().Str("address", address).Msg("Connecting to archive host")

	connCh := make(chan *ssh.Client)
	errCh := make(chan error, 1)
	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case connCh <- client:
		case <-ctx.Done():
			_ = client.Close()
		}
	}()

	select {
	case <-ctx.Done():
		return nil, &TransferError{Op: "connect", Err: ctx.Err()}
	case err := <-errCh:
		return nil, &TransferError{Op: "connect", Err: err}
	case client := <-connCh:
		return client, nil
	}
}

// upload copies one local file into the remote directory under its
// base name.
func (c *Client) upload(ctx context.Context, client *sftp.Client, localPath string) (int64, error) {
	remotePath := path.Join(c.config.RemoteDir, filepath.Base(localPath))

	local, err := os.Open(localPath)
	if err != nil {
		return 0, &TransferError{Op: "upload", Path: localPath, Err: err}
	}
	defer local.Close()

	remote, err := client.Create(remotePath)
	if err != nil {
		return 0, &TransferError{Op: "upload", Path: remotePath, Err: err}
	}
	defer remote.Close()

	written, err := copyWithContext(ctx, remote, local)
	if err != nil {
		return written, &TransferError{Op: "upload", Path: remotePath, Err: err}
	}

	if err := client.Chmod(remotePath, 0o644); err != nil {
		c.logger.Warn().Err(err).Str("path", remotePath).Msg("Failed to set remote permissions")
	}

	c.logger.Debug().
		Str("local", localPath).
		Str("remote", remotePath).
		Int64("bytes", written).
		Msg("Artifact uploaded")

	return written, nil
}

// copyWithContext copies src to dst, checking for cancellation between
// chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if err == io.EOF {
				return written, nil
			}
			return written, err
		}
	}
}
