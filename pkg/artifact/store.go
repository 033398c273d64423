package artifact

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotStored is returned when no artifact exists for a device.
var ErrNotStored = errors.New("artifact not stored")

// Meta is the JSON sidecar written next to each artifact. It records
// what was built, from which run, and the hash the file had at build
// time so later edits can be detected.
type Meta struct {
	Hostname   string    `json:"hostname"`
	Role       string    `json:"role"`
	RunID      string    `json:"run_id"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Store keeps one rendered artifact per device in a flat directory:
// <hostname>.cfg next to <hostname>.json. Writes go through a temp
// file and rename so a crash never leaves a torn artifact.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// ConfigPath returns the artifact path for a device.
func (s *Store) ConfigPath(hostname string) string {
	return filepath.Join(s.dir, hostname+".cfg")
}

// MetaPath returns the sidecar path for a device.
func (s *Store) MetaPath(hostname string) string {
	return filepath.Join(s.dir, hostname+".json")
}

// Hash returns the hex SHA-256 of the content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

// Write stores the artifact and its sidecar, overwriting any previous
// run's output. The returned meta carries the computed hash and size.
func (s *Store) Write(meta Meta, content []byte) (Meta, error) {
	if meta.Hostname == "" {
		return Meta{}, fmt.Errorf("artifact meta missing hostname")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	meta.SHA256 = Hash(content)
	meta.Size = int64(len(content))
	if meta.RenderedAt.IsZero() {
		meta.RenderedAt = time.Now().UTC()
	}

	if err := writeAtomic(s.ConfigPath(meta.Hostname), content); err != nil {
		return Meta{}, fmt.Errorf("failed to write artifact for %s: %w", meta.Hostname, err)
	}

	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("failed to encode artifact meta: %w", err)
	}
	if err := writeAtomic(s.MetaPath(meta.Hostname), append(encoded, '\n')); err != nil {
		return Meta{}, fmt.Errorf("failed to write artifact meta for %s: %w", meta.Hostname, err)
	}
	return meta, nil
}

// Read returns the stored artifact for a device, or ErrNotStored.
func (s *Store) Read(hostname string) ([]byte, error) {
	data, err := os.ReadFile(s.ConfigPath(hostname))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotStored
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact for %s: %w", hostname, err)
	}
	return data, nil
}

// ReadMeta returns the stored sidecar for a device, or ErrNotStored.
func (s *Store) ReadMeta(hostname string) (Meta, error) {
	data, err := os.ReadFile(s.MetaPath(hostname))
	if errors.Is(err, fs.ErrNotExist) {
		return Meta{}, ErrNotStored
	}
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read artifact meta for %s: %w", hostname, err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("failed to decode artifact meta for %s: %w", hostname, err)
	}
	return meta, nil
}

// List returns the sidecars of every stored artifact, sorted by
// hostname. An empty or absent directory yields an empty list.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var metas []Meta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		hostname := strings.TrimSuffix(entry.Name(), ".json")
		meta, err := s.ReadMeta(hostname)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Hostname < metas[j].Hostname })
	return metas, nil
}

// writeAtomic writes data to path via a temp file in the same
// directory followed by a rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
