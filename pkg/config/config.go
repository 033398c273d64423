// Package config loads the loom.yaml workspace file: where the
// inventory, context, policy, and artifact trees live, how builds
// run, and where artifacts are mirrored. Parsing is strict; unknown
// keys are load errors.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openloom/openloom/pkg/compiler"
	"github.com/openloom/openloom/pkg/mirror"
	"github.com/openloom/openloom/pkg/telemetry"
)

// DefaultFile is the workspace file name looked up when no --config
// flag is given.
const DefaultFile = "loom.yaml"

var validate = validator.New()

// Config is the workspace configuration. Absent keys keep the values
// Default returns; relative paths are anchored at the directory
// holding the file.
type Config struct {
	// Workspace names the fabric this workspace describes.
	Workspace string `yaml:"workspace" validate:"required"`

	Inventory InventoryConfig `yaml:"inventory"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Policies  PoliciesConfig  `yaml:"policies"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Build     BuildConfig     `yaml:"build"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// InventoryConfig locates the device and context sources.
type InventoryConfig struct {
	// Devices is the device inventory file.
	Devices string `yaml:"devices" validate:"required"`

	// Contexts is the directory of context blob files and derive
	// scripts.
	Contexts string `yaml:"contexts" validate:"required"`
}

// ArtifactsConfig locates the rendered artifact directory.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// PoliciesConfig controls the policy gate.
type PoliciesConfig struct {
	// Dir is the directory of .rego policy files. Builtin policies
	// apply even when the directory is absent.
	Dir string `yaml:"dir"`

	// Enabled turns the policy gate off entirely when false.
	Enabled bool `yaml:"enabled"`
}

// LedgerConfig locates the compile ledger database.
type LedgerConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// BuildConfig tunes compile runs.
type BuildConfig struct {
	// Workers bounds per-device compile parallelism.
	Workers int `yaml:"workers" validate:"gte=1,lte=64"`
}

// MirrorConfig describes the optional artifact archive host. The
// fields mirror the transfer client's Config; deep validation happens
// when the client is built.
type MirrorConfig struct {
	Enabled               bool   `yaml:"enabled"`
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port" validate:"gte=1,lte=65535"`
	User                  string `yaml:"user"`
	Auth                  string `yaml:"auth" validate:"omitempty,oneof=password key"`
	Password              string `yaml:"password"`
	KeyPath               string `yaml:"key_path"`
	KeyPassphrase         string `yaml:"key_passphrase"`
	KnownHosts            string `yaml:"known_hosts"`
	StrictHostKeyChecking bool   `yaml:"strict_host_key_checking"`
	RemoteDir             string `yaml:"remote_dir"`
}

// TelemetryConfig carries the observability settings the CLI feeds
// into the telemetry stack.
type TelemetryConfig struct {
	LogLevel  string        `yaml:"log_level" validate:"oneof=trace debug info warn error fatal"`
	LogFormat string        `yaml:"log_format" validate:"oneof=console json"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Tracing   TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// TracingConfig controls trace export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration an empty loom.yaml implies. The
// workspace name has no default; every workspace must name itself.
func Default() *Config {
	return &Config{
		Inventory: InventoryConfig{
			Devices:  "inventory/devices.yaml",
			Contexts: "contexts",
		},
		Artifacts: ArtifactsConfig{Dir: "artifacts"},
		Policies:  PoliciesConfig{Dir: "policies", Enabled: true},
		Ledger:    LedgerConfig{Path: ".loom/ledger.db"},
		Build:     BuildConfig{Workers: compiler.DefaultWorkers},
		Mirror: MirrorConfig{
			Port:                  22,
			Auth:                  "key",
			StrictHostKeyChecking: true,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "console",
			Metrics:   MetricsConfig{Listen: ":9090"},
			Tracing:   TracingConfig{Exporter: "stdout"},
		},
	}
}

// Load reads and validates a workspace file. Relative paths inside the
// file are resolved against the file's directory so commands work from
// anywhere in the tree.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration. Mirror endpoint fields are only
// required once the mirror is enabled, so a workspace without an
// archive host stays quiet about them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Mirror.Enabled {
		if c.Mirror.Host == "" {
			return fmt.Errorf("mirror.host is required when the mirror is enabled")
		}
		if c.Mirror.User == "" {
			return fmt.Errorf("mirror.user is required when the mirror is enabled")
		}
		if c.Mirror.RemoteDir == "" {
			return fmt.Errorf("mirror.remote_dir is required when the mirror is enabled")
		}
	}
	return nil
}

// resolvePaths anchors relative paths at the workspace root.
func (c *Config) resolvePaths(root string) {
	c.Inventory.Devices = resolvePath(root, c.Inventory.Devices)
	c.Inventory.Contexts = resolvePath(root, c.Inventory.Contexts)
	c.Artifacts.Dir = resolvePath(root, c.Artifacts.Dir)
	c.Policies.Dir = resolvePath(root, c.Policies.Dir)
	c.Ledger.Path = resolvePath(root, c.Ledger.Path)
	c.Mirror.KeyPath = resolvePath(root, c.Mirror.KeyPath)
	c.Mirror.KnownHosts = resolvePath(root, c.Mirror.KnownHosts)
}

func resolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// ToMirror converts the mirror section into the transfer client's
// config. Settings the section does not carry, like the connect
// timeout, keep the mirror package's defaults.
func (m MirrorConfig) ToMirror() *mirror.Config {
	cfg := mirror.DefaultConfig(m.Host, m.User)
	cfg.Port = m.Port
	cfg.AuthMethod = mirror.AuthMethod(m.Auth)
	cfg.Password = m.Password
	cfg.PrivateKeyPath = m.KeyPath
	cfg.PrivateKeyPassphrase = m.KeyPassphrase
	if m.KnownHosts != "" {
		cfg.KnownHostsPath = m.KnownHosts
	}
	cfg.StrictHostKeyChecking = m.StrictHostKeyChecking
	cfg.RemoteDir = m.RemoteDir
	return cfg
}

// ToTelemetry merges the telemetry section over the telemetry stack's
// defaults. The caller fills in service identity afterwards.
func (t TelemetryConfig) ToTelemetry() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = t.LogLevel
	cfg.Logging.Format = t.LogFormat
	cfg.Metrics.Enabled = t.Metrics.Enabled
	if t.Metrics.Listen != "" {
		cfg.Metrics.ListenAddress = t.Metrics.Listen
	}
	cfg.Tracing.Enabled = t.Tracing.Enabled
	if t.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = t.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = t.Tracing.Endpoint
	return cfg
}

// Sample returns a starter loom.yaml for a new workspace. The output
// loads cleanly through Load.
func Sample(workspace string) string {
	return fmt.Sprintf(`# loom workspace configuration
workspace: %s

inventory:
  devices: inventory/devices.yaml
  contexts: contexts

artifacts:
  dir: artifacts

policies:
  dir: policies
  enabled: true

ledger:
  path: .loom/ledger.db

build:
  workers: 8

# Uncomment to mirror built artifacts to an archive host after runs.
# mirror:
#   enabled: true
#   host: archive.example.com
#   user: loom
#   remote_dir: /srv/loom/artifacts

telemetry:
  log_level: info
  log_format: console
`, workspace)
}
