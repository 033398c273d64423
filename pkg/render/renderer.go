package render

import (
	"fmt"
	"strings"

	"github.com/openloom/openloom/pkg/fabric"
)

// Error is a render defect: a record that passed validation still could
// not be turned into syntax. Path names the offending field. No partial
// text ever accompanies an Error.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("render %s: %s", e.Path, e.Reason)
}

// Config renders a resolved record into device syntax. It is a pure
// function of the record: identical input yields byte-identical output,
// and nothing is read from the clock or the environment. The full text is
// assembled in memory before being returned, so a failure produces no
// output at all.
func Config(rec *fabric.Record) (string, error) {
	if err := checkReferences(rec); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, section := range sections {
		lines := section(rec)
		if len(lines) == 0 {
			continue
		}
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("!\n")
	}
	b.WriteString("end\n")
	return b.String(), nil
}

// checkReferences re-verifies definition-before-use for route-maps and
// prefix-lists. Validation already enforces this, so a hit here is a
// defect in the caller, not operator input.
func checkReferences(rec *fabric.Record) error {
	for i, af := range rec.Routing.AddressFamilies {
		for j, act := range af.Neighbors {
			base := fmt.Sprintf("routing.address_families[%d].neighbors[%d]", i, j)
			if act.RouteMapIn != nil && !rec.HasRouteMap(*act.RouteMapIn) {
				return &Error{Path: base + ".route_map_in", Reason: fmt.Sprintf("route-map %q is not defined", *act.RouteMapIn)}
			}
			if act.RouteMapOut != nil && !rec.HasRouteMap(*act.RouteMapOut) {
				return &Error{Path: base + ".route_map_out", Reason: fmt.Sprintf("route-map %q is not defined", *act.RouteMapOut)}
			}
		}
	}
	for i, rd := range rec.Routing.Redistribute {
		if rd.RouteMap != nil && !rec.HasRouteMap(*rd.RouteMap) {
			return &Error{
				Path:   fmt.Sprintf("routing.redistribute[%d].route_map", i),
				Reason: fmt.Sprintf("route-map %q is not defined", *rd.RouteMap),
			}
		}
	}
	for i, rm := range rec.Routing.RouteMaps {
		for j, e := range rm.Entries {
			if e.MatchPrefixList != nil && !rec.HasPrefixList(*e.MatchPrefixList) {
				return &Error{
					Path:   fmt.Sprintf("routing.route_maps[%d].entries[%d].match_prefix_list", i, j),
					Reason: fmt.Sprintf("prefix-list %q is not defined", *e.MatchPrefixList),
				}
			}
		}
	}
	return nil
}
