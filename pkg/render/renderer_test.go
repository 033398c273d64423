package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/openloom/openloom/pkg/fabric"
)

func strPtr(s string) *string { return &s }
func u8Ptr(v uint8) *uint8    { return &v }
func u16Ptr(v uint16) *uint16 { return &v }
func u32Ptr(v uint32) *uint32 { return &v }
func boolPtr(v bool) *bool    { return &v }

// mustIndex returns the position of the first occurrence of sub, failing
// the test when it is absent.
func mustIndex(t *testing.T, out, sub string) int {
	t.Helper()
	i := strings.Index(out, sub)
	if i < 0 {
		t.Fatalf("output does not contain %q\n%s", sub, out)
	}
	return i
}

// fullRecord is a leaf with every section populated.
func fullRecord() *fabric.Record {
	return &fabric.Record{
		Device: fabric.DeviceIdentity{
			Hostname: "leaf11",
			Role:     fabric.RoleLeaf,
			Site:     "dc1",
			Platform: "eos",
		},
		DNSServers:    []string{"10.0.0.50", "10.0.0.51"},
		NTPServers:    []string{"10.0.0.100", "10.0.0.101"},
		SyslogServers: []string{"10.0.0.200"},
		SNMP:          &fabric.SNMP{Community: "fabric", Location: "dc1", Contact: "noc@example.net"},
		Mgmt:          &fabric.MgmtInterface{Name: "Management1", Address: "172.20.20.11/24", Description: strPtr("oob")},
		VLANs: []fabric.VLAN{
			{ID: 10, Name: "DATA"},
			{ID: 20, Name: "VOICE"},
			{ID: 30, Name: "GUEST"},
		},
		Interfaces: []fabric.Interface{
			{Name: "Ethernet1", Enabled: true, Description: strPtr("to spine01"), Mode: fabric.ModeRouted, Address: strPtr("10.1.1.1/31")},
			{Name: "Ethernet3", Enabled: true, Mode: fabric.ModeAccess, AccessVLAN: u16Ptr(10)},
			{Name: "Ethernet4", Enabled: true, Mode: fabric.ModeTrunk, AllowedVLANs: []uint16{10, 20, 30}},
			{Name: "Ethernet5", Enabled: false, Mode: fabric.ModeAccess, AccessVLAN: u16Ptr(30)},
		},
		Routing: fabric.Routing{
			AutonomousSystem: u32Ptr(65011),
			RouterID:         strPtr("10.255.255.11"),
			RouterIDLoopback: &fabric.Loopback{ID: 0, Address: "10.255.255.11/32"},
			MaximumPaths:     u8Ptr(4),
			ECMPPaths:        u8Ptr(4),
			PeerGroups: []fabric.PeerGroup{
				{Name: "LEAF_UNDERLAY", RemoteAS: strPtr("external"), SendCommunity: strPtr("extended")},
				{Name: "EVPN_OVERLAY", RemoteAS: strPtr("external"), UpdateSource: strPtr("Loopback0"), EBGPMultihop: u8Ptr(3), SendCommunity: strPtr("extended")},
			},
			Neighbors: []fabric.Neighbor{
				{Address: "10.1.1.0", PeerGroup: strPtr("LEAF_UNDERLAY"), RemoteAS: strPtr("65000"), Description: strPtr("spine01")},
				{Address: "10.255.255.1", PeerGroup: strPtr("EVPN_OVERLAY")},
			},
			AddressFamilies: []fabric.AddressFamily{
				{Name: "ipv4", Neighbors: []fabric.Activation{
					{Neighbor: "LEAF_UNDERLAY", Activate: true, RouteMapIn: strPtr("RM-CONN")},
				}},
			},
			Redistribute: []fabric.Redistribution{
				{Protocol: "connected", RouteMap: strPtr("RM-CONN")},
			},
			PrefixLists: []fabric.PrefixList{
				{Name: "PL-LOOPBACKS", Rules: []fabric.PrefixRule{
					{Sequence: 10, Action: "permit", Prefix: "10.255.255.0/24", LE: u8Ptr(32)},
				}},
			},
			RouteMaps: []fabric.RouteMap{
				{Name: "RM-CONN", Entries: []fabric.RouteMapEntry{
					{Sequence: 10, Action: "permit", MatchPrefixList: strPtr("PL-LOOPBACKS")},
				}},
			},
			Overlay: fabric.Overlay{
				Neighbors: []fabric.OverlayNeighbor{
					{Address: "10.255.255.1", Encapsulation: strPtr("vxlan")},
				},
			},
		},
		Tunnel: fabric.Tunnel{
			SourceLoopback:  &fabric.Loopback{ID: 1, Address: "10.255.254.11/32"},
			SourceInterface: strPtr("Loopback1"),
			UDPPort:         u16Ptr(4789),
			VLANMappings: []fabric.VLANMapping{
				{VLAN: 10, VNI: 10010},
				{VLAN: 20, VNI: 10020},
			},
			FloodLists: []fabric.FloodList{
				{VLAN: 10, VTEPs: []string{"10.255.254.12", "10.255.254.13"}},
			},
		},
	}
}

func TestConfig_ByteIdentical(t *testing.T) {
	first, err := Config(fullRecord())
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}
	second, err := Config(fullRecord())
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}
	if first != second {
		t.Error("identical records rendered different output")
	}
}

func TestConfig_SectionOrder(t *testing.T) {
	out, err := Config(fullRecord())
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}

	order := []string{
		"hostname leaf11",
		"ip name-server 10.0.0.50",
		"ntp server 10.0.0.100",
		"banner motd",
		"snmp-server community fabric ro",
		"logging host 10.0.0.200",
		"interface Management1",
		"vlan 10",
		"interface Ethernet1",
		"interface Loopback1",
		"interface Vxlan1",
		"interface Loopback0",
		"ip prefix-list PL-LOOPBACKS",
		"route-map RM-CONN permit 10",
		"router bgp 65011",
	}

	last := -1
	for _, sub := range order {
		i := mustIndex(t, out, sub)
		if i <= last {
			t.Errorf("%q rendered out of order\n%s", sub, out)
		}
		last = i
	}
}

func TestConfig_SpineRoutingBlock(t *testing.T) {
	rec := &fabric.Record{
		Device: fabric.DeviceIdentity{Hostname: "spine1", Role: fabric.RoleSpine},
		Routing: fabric.Routing{
			AutonomousSystem: u32Ptr(65000),
			RouterID:         strPtr("10.255.255.1"),
			PeerGroups: []fabric.PeerGroup{
				{Name: "underlay", RemoteAS: strPtr("external")},
				{Name: "overlay", RemoteAS: strPtr("external"), UpdateSource: strPtr("Loopback0")},
			},
			Neighbors: []fabric.Neighbor{
				{Address: "10.1.1.1", PeerGroup: strPtr("underlay"), RemoteAS: strPtr("65011")},
				{Address: "10.255.255.11", PeerGroup: strPtr("overlay")},
				{Address: "10.1.1.3", PeerGroup: strPtr("underlay"), RemoteAS: strPtr("65012")},
				{Address: "10.255.255.12", PeerGroup: strPtr("overlay")},
			},
		},
	}

	out, err := Config(rec)
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}

	mustIndex(t, out, "router bgp 65000\n")
	mustIndex(t, out, "   router-id 10.255.255.1\n")

	// Neighbor lines keep the input list order, and each neighbor's
	// peer-group assignment line comes first.
	assignments := []string{
		"   neighbor 10.1.1.1 peer group underlay\n",
		"   neighbor 10.255.255.11 peer group overlay\n",
		"   neighbor 10.1.1.3 peer group underlay\n",
		"   neighbor 10.255.255.12 peer group overlay\n",
	}
	last := -1
	for _, sub := range assignments {
		i := mustIndex(t, out, sub)
		if i <= last {
			t.Errorf("neighbor assignment %q out of input order\n%s", strings.TrimSpace(sub), out)
		}
		last = i
	}

	if mustIndex(t, out, "   neighbor 10.1.1.1 peer group underlay\n") > mustIndex(t, out, "   neighbor 10.1.1.1 remote-as 65011\n") {
		t.Error("peer-group assignment must precede the neighbor's other lines")
	}

	// Group definitions precede all assignments.
	if mustIndex(t, out, "   neighbor overlay peer group\n") > mustIndex(t, out, "   neighbor 10.1.1.1 peer group underlay\n") {
		t.Error("peer-group definitions must precede neighbor assignments")
	}
}

func TestConfig_VLANToVNILines(t *testing.T) {
	out, err := Config(fullRecord())
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}

	mustIndex(t, out, "   vxlan vlan 10 vni 10010\n")
	mustIndex(t, out, "   vxlan vlan 20 vni 10020\n")
	// VLAN 30 has no mapping and must not produce a vni line.
	if strings.Contains(out, "vxlan vlan 30") {
		t.Errorf("unmapped vlan 30 produced a tunnel line\n%s", out)
	}
}

func TestConfig_DefinitionBeforeUse(t *testing.T) {
	out, err := Config(fullRecord())
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}

	def := mustIndex(t, out, "route-map RM-CONN permit 10")
	use := mustIndex(t, out, "redistribute connected route-map RM-CONN")
	if def >= use {
		t.Error("route-map definition must render before its reference")
	}

	plDef := mustIndex(t, out, "ip prefix-list PL-LOOPBACKS")
	plUse := mustIndex(t, out, "match ip address prefix-list PL-LOOPBACKS")
	if plDef >= plUse {
		t.Error("prefix-list definition must render before its reference")
	}
}

func TestConfig_DanglingReferenceIsDefect(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*fabric.Record)
		wantPath string
	}{
		{
			name: "redistribute route-map",
			mutate: func(rec *fabric.Record) {
				rec.Routing.RouteMaps = nil
				rec.Routing.AddressFamilies = nil
			},
			wantPath: "routing.redistribute[0].route_map",
		},
		{
			name: "activation route-map in",
			mutate: func(rec *fabric.Record) {
				rec.Routing.AddressFamilies[0].Neighbors[0].RouteMapIn = strPtr("RM-GHOST")
			},
			wantPath: "routing.address_families[0].neighbors[0].route_map_in",
		},
		{
			name: "route-map match prefix-list",
			mutate: func(rec *fabric.Record) {
				rec.Routing.PrefixLists = nil
			},
			wantPath: "routing.route_maps[0].entries[0].match_prefix_list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fullRecord()
			tt.mutate(rec)

			out, err := Config(rec)
			if err == nil {
				t.Fatal("expected render error, got nil")
			}
			if out != "" {
				t.Error("a failed render must produce no output")
			}
			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if rerr.Path != tt.wantPath {
				t.Errorf("error path = %q, want %q", rerr.Path, tt.wantPath)
			}
		})
	}
}

func TestConfig_RoleBanner(t *testing.T) {
	tests := []struct {
		name string
		role fabric.Role
		want string
	}{
		{name: "spine", role: fabric.RoleSpine, want: "fabric spine"},
		{name: "leaf", role: fabric.RoleLeaf, want: "fabric leaf"},
		{name: "border", role: fabric.RoleBorder, want: "fabric border"},
		{name: "unrecognized role", role: fabric.Role("access-campus"), want: "unclassified fabric device"},
		{name: "empty role", role: fabric.Role(""), want: "unclassified fabric device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fabric.Record{Device: fabric.DeviceIdentity{Hostname: "dev1", Role: tt.role}}
			out, err := Config(rec)
			if err != nil {
				t.Fatalf("Config() error: %v", err)
			}
			banner := mustIndex(t, out, "banner motd")
			if !strings.Contains(out[banner:], tt.want) {
				t.Errorf("banner for role %q lacks %q\n%s", tt.role, tt.want, out)
			}
		})
	}
}

func TestConfig_InterfaceModes(t *testing.T) {
	out, err := Config(fullRecord())
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}

	routed := mustIndex(t, out, "interface Ethernet1\n")
	routedBlock := out[routed:mustIndex(t, out, "interface Ethernet3\n")]
	if !strings.Contains(routedBlock, "   no switchport\n") || !strings.Contains(routedBlock, "   ip address 10.1.1.1/31\n") {
		t.Errorf("routed interface block wrong:\n%s", routedBlock)
	}

	mustIndex(t, out, "   switchport mode access\n")
	mustIndex(t, out, "   switchport access vlan 10\n")
	mustIndex(t, out, "   switchport trunk allowed vlan 10,20,30\n")

	disabled := mustIndex(t, out, "interface Ethernet5\n")
	if !strings.Contains(out[disabled:], "   shutdown\n") {
		t.Error("disabled interface must render shutdown")
	}
}

func TestConfig_OverlayRouteReflector(t *testing.T) {
	rec := fullRecord()
	rec.Routing.Overlay.RouteReflectorClient = boolPtr(true)

	out, err := Config(rec)
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}
	mustIndex(t, out, "      neighbor 10.255.255.1 activate\n")
	mustIndex(t, out, "      neighbor 10.255.255.1 encapsulation vxlan\n")
	mustIndex(t, out, "      neighbor 10.255.255.1 route-reflector-client\n")

	rec.Routing.Overlay.RouteReflectorClient = boolPtr(false)
	out, err = Config(rec)
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}
	if strings.Contains(out, "route-reflector-client") {
		t.Error("route-reflector-client rendered despite false flag")
	}
}

func TestConfig_EmptySectionsOmitted(t *testing.T) {
	rec := &fabric.Record{Device: fabric.DeviceIdentity{Hostname: "bare1", Role: fabric.RoleBorder}}

	out, err := Config(rec)
	if err != nil {
		t.Fatalf("Config() error: %v", err)
	}

	mustIndex(t, out, "hostname bare1\n")
	mustIndex(t, out, "banner motd\n")
	for _, absent := range []string{"ntp server", "snmp-server", "vlan ", "interface ", "router bgp", "vxlan"} {
		if strings.Contains(out, absent) {
			t.Errorf("empty record rendered %q\n%s", absent, out)
		}
	}
	if !strings.HasSuffix(out, "end\n") {
		t.Errorf("output must end with end\n%s", out)
	}
}
