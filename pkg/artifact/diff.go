package artifact

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// DriftKind classifies how a stored artifact relates to a fresh render.
type DriftKind string

const (
	// DriftClean means the stored artifact matches the fresh render and
	// its build-time hash.
	DriftClean DriftKind = "clean"
	// DriftStale means the file is untouched since the last build but
	// the inputs have changed: a rebuild would write something new.
	DriftStale DriftKind = "stale"
	// DriftModified means the file no longer matches the hash recorded
	// at build time: somebody edited it out of band.
	DriftModified DriftKind = "modified"
	// DriftMissing means no artifact exists for the device.
	DriftMissing DriftKind = "missing"
)

// DriftReport is the drift verdict for one device.
type DriftReport struct {
	Hostname string    `json:"hostname"`
	Kind     DriftKind `json:"kind"`
	Detail   string    `json:"detail,omitempty"`
	Diff     string    `json:"diff,omitempty"`
}

// Unified renders a unified diff between two artifact texts.
func Unified(from, to string, a, b []byte) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: from,
		ToFile:   to,
		Context:  4,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to generate diff: %w", err)
	}
	return text, nil
}

// Diff compares the stored artifact against a fresh render and returns
// the unified diff, empty when they match. A device with no stored
// artifact diffs against nothing, so the whole render shows as added.
func (s *Store) Diff(hostname string, fresh []byte) (string, error) {
	stored, err := s.Read(hostname)
	if err != nil && !errors.Is(err, ErrNotStored) {
		return "", err
	}
	if bytes.Equal(stored, fresh) {
		return "", nil
	}
	return Unified(hostname+".cfg (stored)", hostname+".cfg (rendered)", stored, fresh)
}

// Drift classifies the stored artifact against a fresh render.
// Out-of-band edits are reported as modified even when the edited text
// happens to differ from the render the same way a stale file would.
func (s *Store) Drift(hostname string, fresh []byte) (*DriftReport, error) {
	report := &DriftReport{Hostname: hostname}

	stored, err := s.Read(hostname)
	if errors.Is(err, ErrNotStored) {
		report.Kind = DriftMissing
		report.Detail = "no artifact on disk"
		return report, nil
	}
	if err != nil {
		return nil, err
	}

	meta, metaErr := s.ReadMeta(hostname)
	switch {
	case errors.Is(metaErr, ErrNotStored):
		report.Kind = DriftModified
		report.Detail = "no build record for the artifact"
	case metaErr != nil:
		return nil, metaErr
	case Hash(stored) != meta.SHA256:
		report.Kind = DriftModified
		report.Detail = "artifact does not match its build-time hash"
	case bytes.Equal(stored, fresh):
		report.Kind = DriftClean
		return report, nil
	default:
		report.Kind = DriftStale
		report.Detail = "inputs changed since the last build"
	}

	diff, err := Unified(hostname+".cfg (stored)", hostname+".cfg (rendered)", stored, fresh)
	if err != nil {
		return nil, err
	}
	report.Diff = diff
	return report, nil
}
