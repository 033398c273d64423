package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Loader reads the device inventory and context blobs from a workspace.
// Parsing is strict: unknown keys, bad tiers, and incoherent scopes are
// load failures, not warnings.
type Loader struct {
	logger   zerolog.Logger
	validate *validator.Validate
	cue      *CUEParser
	derive   *DeriveRunner
}

// NewLoader creates a loader with default parsers for each context
// format.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:   logger.With().Str("component", "inventory").Logger(),
		validate: validator.New(),
		cue:      NewCUEParser(),
		derive:   NewDeriveRunner(0),
	}
}

// devicesFile is the on-disk shape of the inventory file.
type devicesFile struct {
	Devices []Device `yaml:"devices"`
}

// Load reads the full workspace inventory: the device file plus every
// context source in the contexts directory.
func (l *Loader) Load(ctx context.Context, devicesPath, contextsDir string) (*Inventory, error) {
	devices, err := l.LoadDevices(devicesPath)
	if err != nil {
		return nil, err
	}
	blobs, err := l.LoadContexts(ctx, contextsDir, devices)
	if err != nil {
		return nil, err
	}
	return &Inventory{Devices: devices, Blobs: blobs}, nil
}

// LoadDevices reads the device inventory file. Hostnames must be
// unique across the fleet.
func (l *Loader) LoadDevices(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	var file devicesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	seen := make(map[string]bool, len(file.Devices))
	for i, d := range file.Devices {
		if err := l.validate.Struct(d); err != nil {
			return nil, &LoadError{File: path, Message: fmt.Sprintf("device %d (%s): %v", i, d.Hostname, err)}
		}
		if seen[d.Hostname] {
			return nil, &LoadError{File: path, Message: fmt.Sprintf("duplicate hostname %s", d.Hostname)}
		}
		seen[d.Hostname] = true
	}

	l.logger.Info().
		Int("devices", len(file.Devices)).
		Str("path", path).
		Msg("Inventory loaded")

	return file.Devices, nil
}

// LoadContexts reads every context source in the directory: YAML and
// JSON blob files, CUE files checked against the blob schema, and
// Starlark derive scripts run against the inventory. Files are
// processed in name order so reloads see the same sequence.
func (l *Loader) LoadContexts(ctx context.Context, dir string, devices []Device) ([]ContextBlob, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read contexts directory: %w", err)
	}

	var blobs []ContextBlob
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var loaded []ContextBlob
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			loaded, err = l.parseBlobFile(path)
		case ".cue":
			loaded, err = l.cue.ParseFile(path)
		case ".star":
			loaded, err = l.runDerive(ctx, path, devices)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, loaded...)
	}

	for i := range blobs {
		if err := l.checkBlob(&blobs[i]); err != nil {
			return nil, err
		}
	}

	l.logger.Info().
		Int("blobs", len(blobs)).
		Str("dir", dir).
		Msg("Context blobs loaded")

	return blobs, nil
}

// parseBlobFile reads one YAML or JSON context file. A file may hold
// several blobs as separate YAML documents; each gets an indexed
// source name so provenance can tell them apart.
func (l *Loader) parseBlobFile(path string) ([]ContextBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var blobs []ContextBlob
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	for i := 0; ; i++ {
		var b ContextBlob
		err := dec.Decode(&b)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{File: path, Message: fmt.Sprintf("document %d: %v", i, err)}
		}
		b.Source = path
		blobs = append(blobs, b)
	}
	if len(blobs) > 1 {
		for i := range blobs {
			blobs[i].Source = fmt.Sprintf("%s#%d", path, i)
		}
	}
	return blobs, nil
}

func (l *Loader) runDerive(ctx context.Context, path string, devices []Device) ([]ContextBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	blobs, err := l.derive.Run(ctx, path, string(data), devices)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return blobs, nil
}

func (l *Loader) checkBlob(b *ContextBlob) error {
	if err := l.validate.Struct(b); err != nil {
		return &LoadError{File: b.Source, Message: fmt.Sprintf("blob %s: %v", b.Name, err)}
	}
	if err := b.check(); err != nil {
		return &LoadError{File: b.Source, Message: err.Error()}
	}
	return nil
}
