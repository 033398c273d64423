package fabric

import (
	"testing"
)

func strPtr(s string) *string { return &s }
func u16Ptr(v uint16) *uint16 { return &v }
func u32Ptr(v uint32) *uint32 { return &v }

// minimalRouting satisfies the common required fields for every role.
func minimalRouting() Routing {
	return Routing{
		AutonomousSystem: u32Ptr(65000),
		RouterID:         strPtr("10.255.255.1"),
		Neighbors:        []Neighbor{{Address: "10.1.1.0"}},
		AddressFamilies:  []AddressFamily{{Name: "ipv4", Neighbors: []Activation{{Neighbor: "10.1.1.0", Activate: true}}}},
	}
}

func hasIssue(issues []Issue, path string, kind IssueKind) bool {
	for _, is := range issues {
		if is.Path == path && is.Kind == kind {
			return true
		}
	}
	return false
}

func TestValidate_CommonRequiredFields(t *testing.T) {
	rec := &Record{Device: DeviceIdentity{Hostname: "border1", Role: RoleBorder}}

	issues := Validate(rec)

	want := []string{
		"routing.autonomous_system",
		"routing.router_id",
		"routing.neighbors",
		"routing.address_families",
	}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %d: %v", len(want), len(issues), issues)
	}
	for _, path := range want {
		if !hasIssue(issues, path, IssueMissing) {
			t.Errorf("expected missing issue for %s", path)
		}
	}
}

func TestValidate_LeafMissingVLANMappings(t *testing.T) {
	rec := &Record{
		Device:  DeviceIdentity{Hostname: "leaf1", Role: RoleLeaf},
		VLANs:   []VLAN{{ID: 10, Name: "DATA"}},
		Routing: minimalRouting(),
		Tunnel: Tunnel{
			SourceLoopback:  &Loopback{ID: 1, Address: "10.255.254.11"},
			SourceInterface: strPtr("Loopback1"),
		},
	}
	rec.Routing.Overlay.Neighbors = []OverlayNeighbor{{Address: "10.255.255.1"}}

	issues := Validate(rec)

	if len(issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d: %v", len(issues), issues)
	}
	if issues[0].Path != "tunnel.vlan_mappings" || issues[0].Kind != IssueMissing {
		t.Errorf("expected missing tunnel.vlan_mappings, got %v", issues[0])
	}
}

func TestValidate_SpineRequiredFields(t *testing.T) {
	rec := &Record{
		Device:  DeviceIdentity{Hostname: "spine1", Role: RoleSpine},
		Routing: minimalRouting(),
	}

	issues := Validate(rec)

	if !hasIssue(issues, "routing.overlay.neighbors", IssueMissing) {
		t.Errorf("expected missing routing.overlay.neighbors, got %v", issues)
	}
	if !hasIssue(issues, "routing.peer_groups", IssueMissing) {
		t.Errorf("expected missing routing.peer_groups, got %v", issues)
	}
}

func TestValidate_UnknownRoleUsesCommonRulesOnly(t *testing.T) {
	rec := &Record{
		Device:  DeviceIdentity{Hostname: "campus1", Role: ParseRole("Access-Campus")},
		Routing: minimalRouting(),
	}

	if issues := Validate(rec); len(issues) != 0 {
		t.Errorf("expected no issues for unknown role with common fields present, got %v", issues)
	}
}

func TestValidate_CollectsEveryIssue(t *testing.T) {
	// Leaf with nothing set at all: common and role-specific gaps must all
	// be reported in one pass.
	rec := &Record{Device: DeviceIdentity{Hostname: "leaf9", Role: RoleLeaf}}

	issues := Validate(rec)

	want := []string{
		"routing.autonomous_system",
		"routing.router_id",
		"routing.neighbors",
		"routing.address_families",
		"tunnel.source_loopback",
		"tunnel.source_interface",
		"tunnel.vlan_mappings",
		"routing.overlay.neighbors",
		"vlans",
	}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %d: %v", len(want), len(issues), issues)
	}
	for _, path := range want {
		if !hasIssue(issues, path, IssueMissing) {
			t.Errorf("expected missing issue for %s", path)
		}
	}
}

func TestValidate_VLANReferences(t *testing.T) {
	rec := &Record{
		Device:  DeviceIdentity{Hostname: "leaf1", Role: RoleBorder},
		Routing: minimalRouting(),
		VLANs:   []VLAN{{ID: 10, Name: "DATA"}},
		Interfaces: []Interface{
			{Name: "Ethernet1", Enabled: true, Mode: ModeAccess, AccessVLAN: u16Ptr(40)},
			{Name: "Ethernet2", Enabled: true, Mode: ModeTrunk, AllowedVLANs: []uint16{10, 30}},
		},
		Tunnel: Tunnel{
			VLANMappings: []VLANMapping{{VLAN: 20, VNI: 10020}},
		},
	}

	issues := Validate(rec)

	for _, path := range []string{
		"interfaces[0].access_vlan",
		"interfaces[1].allowed_vlans[1]",
		"tunnel.vlan_mappings[0].vlan",
	} {
		if !hasIssue(issues, path, IssueInvalid) {
			t.Errorf("expected invalid issue for %s, got %v", path, issues)
		}
	}
}

func TestValidate_RoutingReferences(t *testing.T) {
	rec := &Record{
		Device: DeviceIdentity{Hostname: "spine1", Role: RoleBorder},
		Routing: Routing{
			AutonomousSystem: u32Ptr(65000),
			RouterID:         strPtr("10.255.255.1"),
			Neighbors: []Neighbor{
				{Address: "10.1.1.0", PeerGroup: strPtr("GHOST_GROUP")},
			},
			AddressFamilies: []AddressFamily{
				{Name: "ipv4", Neighbors: []Activation{
					{Neighbor: "10.9.9.9", Activate: true},
					{Neighbor: "10.1.1.0", Activate: true, RouteMapIn: strPtr("RM-MISSING")},
				}},
			},
			Redistribute: []Redistribution{
				{Protocol: "connected", RouteMap: strPtr("RM-CONN")},
			},
			RouteMaps: []RouteMap{
				{Name: "RM-CONN", Entries: []RouteMapEntry{
					{Sequence: 10, Action: "permit", MatchPrefixList: strPtr("PL-MISSING")},
				}},
			},
		},
	}

	issues := Validate(rec)

	for _, path := range []string{
		"routing.neighbors[0].peer_group",
		"routing.address_families[0].neighbors[0].neighbor",
		"routing.address_families[0].neighbors[1].route_map_in",
		"routing.route_maps[0].entries[0].match_prefix_list",
	} {
		if !hasIssue(issues, path, IssueInvalid) {
			t.Errorf("expected invalid issue for %s, got %v", path, issues)
		}
	}

	// The redistribute reference resolves: RM-CONN is defined.
	if hasIssue(issues, "routing.redistribute[0].route_map", IssueInvalid) {
		t.Errorf("did not expect issue for defined route-map, got %v", issues)
	}
}

func TestValidate_LoopbackCollision(t *testing.T) {
	rec := &Record{
		Device:  DeviceIdentity{Hostname: "leaf1", Role: RoleBorder},
		Routing: minimalRouting(),
		Tunnel: Tunnel{
			SourceLoopback: &Loopback{ID: 0, Address: "10.255.254.11"},
		},
	}
	rec.Routing.RouterIDLoopback = &Loopback{ID: 0, Address: "10.255.255.11"}

	issues := Validate(rec)

	if !hasIssue(issues, "routing.router_id_loopback.id", IssueInvalid) {
		t.Errorf("expected loopback collision issue, got %v", issues)
	}
}

func TestValidate_DuplicateDeclarations(t *testing.T) {
	rec := &Record{
		Device:  DeviceIdentity{Hostname: "leaf1", Role: RoleBorder},
		Routing: minimalRouting(),
		VLANs:   []VLAN{{ID: 10, Name: "DATA"}, {ID: 10, Name: "DUP"}},
		Interfaces: []Interface{
			{Name: "Ethernet1", Mode: ModeRouted, Address: strPtr("10.1.1.1/31")},
			{Name: "Ethernet1", Mode: ModeRouted, Address: strPtr("10.1.1.3/31")},
		},
	}

	issues := Validate(rec)

	if !hasIssue(issues, "vlans[1].id", IssueInvalid) {
		t.Errorf("expected duplicate vlan issue, got %v", issues)
	}
	if !hasIssue(issues, "interfaces[1].name", IssueInvalid) {
		t.Errorf("expected duplicate interface issue, got %v", issues)
	}
}

func TestMissingPaths(t *testing.T) {
	issues := []Issue{
		{Path: "routing.router_id", Kind: IssueMissing},
		{Path: "vlans[0].id", Kind: IssueInvalid, Detail: "duplicate"},
		{Path: "tunnel.vlan_mappings", Kind: IssueMissing},
	}

	paths := MissingPaths(issues)
	if len(paths) != 2 || paths[0] != "routing.router_id" || paths[1] != "tunnel.vlan_mappings" {
		t.Errorf("unexpected missing paths: %v", paths)
	}
}
