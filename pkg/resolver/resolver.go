// Package resolver merges tiered context blobs into one typed record per
// device. Each enumerated field path is resolved independently: the
// highest tier present decides, the highest weight within that tier wins,
// and values replace wholesale. Lists and mappings are never concatenated
// or deep-merged across blobs. An equal-weight tie on the deciding tier is
// an error, reported exhaustively across all paths, never broken by blob
// order.
package resolver

import (
	"fmt"
	"sort"

	"github.com/openloom/openloom/pkg/fabric"
)

// candidate is one blob's raw value for a path.
type candidate struct {
	value  any
	tier   Tier
	weight int
	source string
}

// Resolve merges the applicable blobs into a typed record for the given
// device identity. The result is independent of the order of blobs. On
// ambiguity it returns an *AmbiguityError listing every conflicted path;
// on a malformed payload it returns a *BlobError. Either failure is
// scoped to this device alone.
func Resolve(identity fabric.DeviceIdentity, blobs []Blob) (*Resolution, error) {
	known := make(map[fabric.Path][]candidate)
	extra := make(map[string][]candidate)

	for _, b := range blobs {
		if !b.Tier.Valid() {
			return nil, &BlobError{Source: b.Source, Err: fmt.Errorf("unknown tier %q", b.Tier)}
		}
		ex, err := fabric.Extract(b.Payload)
		if err != nil {
			return nil, &BlobError{Source: b.Source, Err: err}
		}
		for path, val := range ex.Values {
			known[path] = append(known[path], candidate{val, b.Tier, b.Weight, b.Source})
		}
		for path, val := range ex.Extra {
			extra[path] = append(extra[path], candidate{val, b.Tier, b.Weight, b.Source})
		}
	}

	// First pass: settle every enumerated path so ambiguities are
	// reported together, before any value is decoded.
	winners := make(map[fabric.Path]candidate)
	var conflicts []Conflict
	for _, path := range fabric.AllPaths() {
		cands := known[path]
		if len(cands) == 0 {
			continue
		}
		winner, tied := pick(cands)
		if len(tied) > 1 {
			conflicts = append(conflicts, Conflict{
				Path:    string(path),
				Tier:    winner.tier,
				Weight:  winner.weight,
				Sources: sourceNames(tied),
			})
			continue
		}
		winners[path] = winner
	}
	if len(conflicts) > 0 {
		return nil, &AmbiguityError{Device: identity.Hostname, Conflicts: conflicts}
	}

	rec := &fabric.Record{Device: identity}
	res := &Resolution{Record: rec}

	for _, path := range fabric.AllPaths() {
		winner, ok := winners[path]
		if !ok {
			continue
		}
		if err := fabric.Apply(rec, path, winner.value); err != nil {
			return nil, &BlobError{Source: winner.source, Path: string(path), Err: err}
		}
		res.Provenance = append(res.Provenance, Provenance{
			Path:   string(path),
			Tier:   winner.tier,
			Weight: winner.weight,
			Source: winner.source,
		})
	}

	// Unknown paths ride along untyped. They carry no semantics, so an
	// equal-weight tie is not an error; the lexicographically smallest
	// source wins to keep the outcome independent of blob order.
	for _, path := range sortedKeys(extra) {
		winner, tied := pick(extra[path])
		if len(tied) > 1 {
			sort.Slice(tied, func(i, j int) bool { return tied[i].source < tied[j].source })
			winner = tied[0]
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[path] = winner.value
		res.Provenance = append(res.Provenance, Provenance{
			Path:   path,
			Tier:   winner.tier,
			Weight: winner.weight,
			Source: winner.source,
		})
	}

	return res, nil
}

// pick selects the candidate on the deciding tier with the highest
// weight. tied holds every candidate at that tier and weight; more than
// one means the path is ambiguous.
func pick(cands []candidate) (winner candidate, tied []candidate) {
	deciding := cands[0].tier
	for _, c := range cands[1:] {
		if c.tier.Beats(deciding) {
			deciding = c.tier
		}
	}

	weight := 0
	first := true
	for _, c := range cands {
		if c.tier != deciding {
			continue
		}
		if first || c.weight > weight {
			weight = c.weight
			first = false
		}
	}

	for _, c := range cands {
		if c.tier == deciding && c.weight == weight {
			tied = append(tied, c)
		}
	}
	return tied[0], tied
}

func sourceNames(cands []candidate) []string {
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.source
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string][]candidate) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
