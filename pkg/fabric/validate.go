package fabric

import "fmt"

// IssueKind classifies a validation finding.
type IssueKind string

const (
	// IssueMissing marks a required field that is absent or empty after
	// the merge. Nothing is ever defaulted in its place.
	IssueMissing IssueKind = "missing"

	// IssueInvalid marks a present field that violates a record
	// invariant.
	IssueInvalid IssueKind = "invalid"
)

// Issue is one validation finding, addressed by field path.
type Issue struct {
	Path   string    `json:"path"`
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

func (i Issue) String() string {
	if i.Detail == "" {
		return fmt.Sprintf("%s: %s", i.Path, i.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Path, i.Kind, i.Detail)
}

// Validate checks a resolved record against the required-field rules for
// its role and the record invariants. It is exhaustive: every finding is
// collected before returning, so the operator sees the complete gap in one
// pass. An empty result means the record may be rendered. The extension
// map is never consulted.
func Validate(rec *Record) []Issue {
	var issues []Issue
	issues = append(issues, requiredIssues(rec)...)
	issues = append(issues, invariantIssues(rec)...)
	return issues
}

// requiredIssues applies the role-conditioned required-field table.
func requiredIssues(rec *Record) []Issue {
	var issues []Issue

	missing := func(path string) {
		issues = append(issues, Issue{Path: path, Kind: IssueMissing})
	}

	// Common to every role.
	if rec.Routing.AutonomousSystem == nil {
		missing("routing.autonomous_system")
	}
	if rec.Routing.RouterID == nil || *rec.Routing.RouterID == "" {
		missing("routing.router_id")
	}
	if len(rec.Routing.Neighbors) == 0 {
		missing("routing.neighbors")
	}
	if len(rec.Routing.AddressFamilies) == 0 {
		missing("routing.address_families")
	}

	switch rec.Device.Role {
	case RoleSpine:
		if len(rec.Routing.Overlay.Neighbors) == 0 {
			missing("routing.overlay.neighbors")
		}
		if len(rec.Routing.PeerGroups) == 0 {
			missing("routing.peer_groups")
		}
	case RoleLeaf:
		if rec.Tunnel.SourceLoopback == nil {
			missing("tunnel.source_loopback")
		}
		if rec.Tunnel.SourceInterface == nil || *rec.Tunnel.SourceInterface == "" {
			missing("tunnel.source_interface")
		}
		if len(rec.Tunnel.VLANMappings) == 0 {
			missing("tunnel.vlan_mappings")
		}
		if len(rec.Routing.Overlay.Neighbors) == 0 {
			missing("routing.overlay.neighbors")
		}
		if len(rec.VLANs) == 0 {
			missing("vlans")
		}
	}

	return issues
}

// invariantIssues checks cross-field consistency on whatever is present.
func invariantIssues(rec *Record) []Issue {
	var issues []Issue

	invalid := func(path, format string, args ...any) {
		issues = append(issues, Issue{
			Path:   path,
			Kind:   IssueInvalid,
			Detail: fmt.Sprintf(format, args...),
		})
	}

	seenVLAN := make(map[uint16]bool)
	for i, v := range rec.VLANs {
		if seenVLAN[v.ID] {
			invalid(fmt.Sprintf("vlans[%d].id", i), "duplicate vlan id %d", v.ID)
		}
		seenVLAN[v.ID] = true
	}

	seenIface := make(map[string]bool)
	for i, iface := range rec.Interfaces {
		p := fmt.Sprintf("interfaces[%d]", i)
		if seenIface[iface.Name] {
			invalid(p+".name", "duplicate interface name %s", iface.Name)
		}
		seenIface[iface.Name] = true

		switch iface.Mode {
		case ModeAccess:
			if iface.AccessVLAN == nil {
				invalid(p+".access_vlan", "access mode requires a vlan id")
			} else if !rec.HasVLAN(*iface.AccessVLAN) {
				invalid(p+".access_vlan", "vlan %d not declared", *iface.AccessVLAN)
			}
		case ModeTrunk:
			for j, vid := range iface.AllowedVLANs {
				if !rec.HasVLAN(vid) {
					invalid(fmt.Sprintf("%s.allowed_vlans[%d]", p, j), "vlan %d not declared", vid)
				}
			}
		case ModeRouted:
			if iface.Address == nil || *iface.Address == "" {
				invalid(p+".address", "routed mode requires an address")
			}
		default:
			invalid(p+".mode", "unknown interface mode %q", iface.Mode)
		}
	}

	for i, m := range rec.Tunnel.VLANMappings {
		if !rec.HasVLAN(m.VLAN) {
			invalid(fmt.Sprintf("tunnel.vlan_mappings[%d].vlan", i), "vlan %d not declared", m.VLAN)
		}
	}
	for i, fl := range rec.Tunnel.FloodLists {
		if !rec.HasVLAN(fl.VLAN) {
			invalid(fmt.Sprintf("tunnel.flood_lists[%d].vlan", i), "vlan %d not declared", fl.VLAN)
		}
	}

	groups := make(map[string]bool)
	for _, pg := range rec.Routing.PeerGroups {
		groups[pg.Name] = true
	}
	neighbors := make(map[string]bool)
	for i, n := range rec.Routing.Neighbors {
		neighbors[n.Address] = true
		if n.PeerGroup != nil && !groups[*n.PeerGroup] {
			invalid(fmt.Sprintf("routing.neighbors[%d].peer_group", i), "peer group %s not defined", *n.PeerGroup)
		}
	}

	checkRouteMap := func(path string, name *string) {
		if name != nil && !rec.HasRouteMap(*name) {
			invalid(path, "route-map %s not defined", *name)
		}
	}

	for i, af := range rec.Routing.AddressFamilies {
		for j, act := range af.Neighbors {
			p := fmt.Sprintf("routing.address_families[%d].neighbors[%d]", i, j)
			if !neighbors[act.Neighbor] && !groups[act.Neighbor] {
				invalid(p+".neighbor", "%s is neither a declared neighbor nor a peer group", act.Neighbor)
			}
			checkRouteMap(p+".route_map_in", act.RouteMapIn)
			checkRouteMap(p+".route_map_out", act.RouteMapOut)
		}
	}

	for i, rd := range rec.Routing.Redistribute {
		checkRouteMap(fmt.Sprintf("routing.redistribute[%d].route_map", i), rd.RouteMap)
	}

	for i, rm := range rec.Routing.RouteMaps {
		for j, e := range rm.Entries {
			if e.MatchPrefixList != nil && !rec.HasPrefixList(*e.MatchPrefixList) {
				invalid(fmt.Sprintf("routing.route_maps[%d].entries[%d].match_prefix_list", i, j),
					"prefix-list %s not defined", *e.MatchPrefixList)
			}
		}
	}

	if rec.Routing.RouterIDLoopback != nil && rec.Tunnel.SourceLoopback != nil &&
		rec.Routing.RouterIDLoopback.ID == rec.Tunnel.SourceLoopback.ID {
		invalid("routing.router_id_loopback.id",
			"collides with tunnel.source_loopback.id %d", rec.Tunnel.SourceLoopback.ID)
	}

	return issues
}

// MissingPaths extracts the paths of missing-kind issues, preserving order.
func MissingPaths(issues []Issue) []string {
	var paths []string
	for _, is := range issues {
		if is.Kind == IssueMissing {
			paths = append(paths, is.Path)
		}
	}
	return paths
}
