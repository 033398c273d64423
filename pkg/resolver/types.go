package resolver

import (
	"fmt"
	"strings"

	"github.com/openloom/openloom/pkg/fabric"
)

// Tier is the precedence class of a context blob. Precedence is fixed:
// override beats device, device beats site, site beats role, role beats
// group. Weight orders blobs within one tier only and never lets a lower
// tier outrank a higher one.
type Tier string

const (
	// TierOverride holds run-time values passed on the command line.
	TierOverride Tier = "override"

	// TierDevice holds values scoped to a single device.
	TierDevice Tier = "device"

	// TierSite holds values scoped to every device of a site.
	TierSite Tier = "site"

	// TierRole holds values scoped to every device of a role.
	TierRole Tier = "role"

	// TierGroup holds group and fabric-wide defaults, the lowest tier.
	TierGroup Tier = "group"
)

var tierRank = map[Tier]int{
	TierOverride: 1,
	TierDevice:   2,
	TierSite:     3,
	TierRole:     4,
	TierGroup:    5,
}

// ParseTier normalizes and validates a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (valid: override, device, site, role, group)", s)
	}
	return t, nil
}

// Valid reports whether the tier is one of the five precedence classes.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Beats reports whether t takes precedence over other.
func (t Tier) Beats(other Tier) bool {
	return tierRank[t] < tierRank[other]
}

func (t Tier) String() string {
	return string(t)
}

// Blob is one applicable context source for a device: a raw payload plus
// the precedence coordinates it competes with. Applicability filtering is
// the inventory's job; the resolver treats every blob it receives as in
// scope.
type Blob struct {
	// Source names where the payload came from (file path, derive
	// script, "override"). It appears in provenance and in ambiguity
	// reports.
	Source  string
	Tier    Tier
	Weight  int
	Payload map[string]any
}

// Provenance records which blob supplied the winning value for one field
// path.
type Provenance struct {
	Path   string `json:"path" yaml:"path"`
	Tier   Tier   `json:"tier" yaml:"tier"`
	Weight int    `json:"weight" yaml:"weight"`
	Source string `json:"source" yaml:"source"`
}

// Resolution is a merged record plus the origin of every resolved path,
// enumerated paths in canonical order followed by unknown paths sorted by
// name.
type Resolution struct {
	Record     *fabric.Record
	Provenance []Provenance
}

// Conflict is one field path whose deciding tier held several blobs at
// the same weight, leaving no single winner.
type Conflict struct {
	Path    string   `json:"path"`
	Tier    Tier     `json:"tier"`
	Weight  int      `json:"weight"`
	Sources []string `json:"sources"`
}

// AmbiguityError reports every conflicted path for a device. Resolution
// never falls back to declaration order: the operator must restate the
// intent with distinct weights or tiers.
type AmbiguityError struct {
	Device    string
	Conflicts []Conflict
}

func (e *AmbiguityError) Error() string {
	paths := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		paths[i] = fmt.Sprintf("%s (%s weight %d: %s)", c.Path, c.Tier, c.Weight, strings.Join(c.Sources, ", "))
	}
	return fmt.Sprintf("ambiguous context for %s: %s", e.Device, strings.Join(paths, "; "))
}

// BlobError marks a payload the resolver could not use: a structurally
// malformed blob or a value that does not decode into its typed field.
// It aborts resolution for the one device it surfaced on.
type BlobError struct {
	Source string
	Path   string
	Err    error
}

func (e *BlobError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("blob %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("blob %s: %s: %v", e.Source, e.Path, e.Err)
}

func (e *BlobError) Unwrap() error {
	return e.Err
}
