package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openloom/openloom/pkg/artifact"
	"github.com/openloom/openloom/pkg/compiler"
	"github.com/openloom/openloom/pkg/config"
	"github.com/openloom/openloom/pkg/inventory"
	"github.com/openloom/openloom/pkg/policy"
	"github.com/openloom/openloom/pkg/stores"
	"github.com/openloom/openloom/pkg/telemetry"
)

// env bundles the loaded workspace pieces a compile-facing command
// starts from. The context carries the telemetry instance so the
// pipeline's metric, event, and span hooks fire.
type env struct {
	ctx       context.Context
	cfg       *config.Config
	tel       *telemetry.Telemetry
	logger    zerolog.Logger
	inv       *inventory.Inventory
	artifacts *artifact.Store
	policies  *policy.Engine
	ledger    stores.Store
	compiler  *compiler.Compiler
}

// openEnv loads loom.yaml and everything the compiler needs. The ledger
// is opened only when asked for; inspection commands run without
// recording. The returned cleanup closes the ledger and flushes
// telemetry.
func openEnv(ctx context.Context, withLedger, withPolicies bool) (*env, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()
	ctx = tel.WithContext(ctx)

	e := &env{ctx: ctx, cfg: cfg, tel: tel, logger: logger}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if e.ledger != nil {
			if err := e.ledger.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close ledger")
			}
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown incomplete")
		}
	}
	fail := func(err error) (*env, func(), error) {
		cleanup()
		return nil, nil, err
	}

	inv, err := inventory.NewLoader(logger).Load(ctx, cfg.Inventory.Devices, cfg.Inventory.Contexts)
	if err != nil {
		return fail(compiler.NewError(compiler.ErrorClassInventory, "loading inventory failed", err))
	}
	e.inv = inv
	e.artifacts = artifact.NewStore(cfg.Artifacts.Dir)

	if withPolicies && cfg.Policies.Enabled {
		eng, err := policy.NewEngine(logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize policy engine: %w", err))
		}
		// The builtin rules apply regardless; the directory adds the
		// workspace's own.
		if _, statErr := os.Stat(cfg.Policies.Dir); statErr == nil {
			if err := eng.LoadPolicies(ctx, []string{cfg.Policies.Dir}); err != nil {
				return fail(compiler.NewError(compiler.ErrorClassPolicy, "loading policies failed", err))
			}
		}
		e.policies = eng
	}

	if withLedger {
		ledger, err := openLedger(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		e.ledger = ledger
		tel.Events.Subscribe(persistEvent(ledger, logger), nil)
	}

	e.compiler = compiler.New(inv, e.artifacts, e.policies, e.ledger, logger)
	return e, cleanup, nil
}

// loadConfig reads the workspace file named by --config, defaulting to
// loom.yaml in the current directory.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultFile
	}
	return config.Load(path)
}

// newTelemetry builds the telemetry instance from the workspace config,
// with --verbose forcing debug logging.
func newTelemetry(cfg *config.Config) (*telemetry.Telemetry, error) {
	tcfg := cfg.Telemetry.ToTelemetry()
	tcfg.ServiceVersion = cliVersion
	if verbose {
		tcfg.Logging.Level = "debug"
	}
	return telemetry.NewTelemetry(tcfg)
}

// openLedger opens the SQLite compile ledger and brings its schema up
// to date.
func openLedger(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	ledger, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Ledger.Path})
	if err != nil {
		return nil, compiler.NewError(compiler.ErrorClassStore, "opening ledger failed", err)
	}
	if err := ledger.Init(ctx); err != nil {
		return nil, compiler.NewError(compiler.ErrorClassStore, "opening ledger failed", err)
	}
	if err := ledger.Migrate(ctx); err != nil {
		_ = ledger.Close()
		return nil, compiler.NewError(compiler.ErrorClassStore, "migrating ledger failed", err)
	}
	return ledger, nil
}

// persistEvent copies published telemetry events into the ledger's
// append-only event table.
func persistEvent(ledger stores.Store, logger zerolog.Logger) telemetry.EventSubscriber {
	return func(ev telemetry.Event) {
		row := &stores.Event{
			Type:      ev.Type,
			Level:     stores.EventLevel(ev.Level),
			Message:   ev.Message,
			Timestamp: ev.Timestamp,
		}
		if ev.RunID != "" {
			runID := ev.RunID
			row.RunID = &runID
		}
		if ev.Hostname != "" {
			hostname := ev.Hostname
			row.Hostname = &hostname
		}
		if len(ev.Data) > 0 {
			if details, err := json.Marshal(ev.Data); err == nil {
				s := string(details)
				row.Details = &s
			}
		}
		if err := ledger.AppendEvent(context.Background(), row); err != nil {
			logger.Warn().Err(err).Str("type", ev.Type).Msg("Failed to record event")
		}
	}
}

// parseOverrides turns --set path=value pairs into one override-tier
// payload. Values go through the YAML scalar parser, so numbers, bools,
// nulls, and flow lists come out typed.
func parseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any)
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, compiler.NewError(compiler.ErrorClassConfig,
				fmt.Sprintf("invalid override %q, expected path=value", pair), nil)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, compiler.NewError(compiler.ErrorClassConfig,
				fmt.Sprintf("invalid override value for %q", key), err)
		}
		node := out
		segs := strings.Split(key, ".")
		for _, seg := range segs[:len(segs)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[segs[len(segs)-1]] = value
	}
	return out, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printYAML writes v to stdout as YAML. The value is round-tripped
// through JSON first so the output uses the field names the API types
// declare.
func printYAML(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
