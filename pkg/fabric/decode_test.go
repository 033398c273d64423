package fabric

import (
	"testing"
)

func TestExtract_PartitionsKnownAndUnknown(t *testing.T) {
	payload := map[string]any{
		"dns_servers": []any{"10.0.0.53"},
		"routing": map[string]any{
			"autonomous_system": 65000,
			"router_id":         "10.255.255.1",
			"overlay": map[string]any{
				"neighbors":              []any{map[string]any{"address": "10.255.255.11"}},
				"route_reflector_client": true,
				"mystery_knob":           42,
			},
			"vendor_hint": "x",
		},
		"tunnel": map[string]any{
			"udp_port": 4789,
		},
		"totally_unknown": "kept",
	}

	ex, err := Extract(payload)
	if err != nil {
		t.Fatalf("unexpected extract error: %v", err)
	}

	wantPaths := []Path{
		PathDNSServers,
		PathRoutingASN,
		PathRoutingRouterID,
		PathOverlayNeighbors,
		PathOverlayRouteReflectorClient,
		PathTunnelUDPPort,
	}
	for _, p := range wantPaths {
		if _, ok := ex.Values[p]; !ok {
			t.Errorf("expected path %s to be set", p)
		}
	}
	if len(ex.Values) != len(wantPaths) {
		t.Errorf("expected %d paths, got %d", len(wantPaths), len(ex.Values))
	}

	wantExtra := []string{"routing.overlay.mystery_knob", "routing.vendor_hint", "totally_unknown"}
	for _, k := range wantExtra {
		if _, ok := ex.Extra[k]; !ok {
			t.Errorf("expected unknown field %s in extension map", k)
		}
	}
	if len(ex.Extra) != len(wantExtra) {
		t.Errorf("expected %d extension entries, got %d", len(wantExtra), len(ex.Extra))
	}
}

func TestExtract_NonMappingGroupFails(t *testing.T) {
	payload := map[string]any{
		"routing": "not a mapping",
	}

	if _, err := Extract(payload); err == nil {
		t.Fatal("expected error for non-mapping routing group")
	}
}

func TestExtract_NilGroupIsIgnored(t *testing.T) {
	ex, err := Extract(map[string]any{"tunnel": nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ex.Values) != 0 || len(ex.Extra) != 0 {
		t.Errorf("expected empty extraction, got values=%v extra=%v", ex.Values, ex.Extra)
	}
}

func TestApply_DecodesTypedValues(t *testing.T) {
	rec := &Record{}

	cases := []struct {
		path  Path
		value any
	}{
		{PathRoutingASN, 65001},
		{PathRoutingRouterID, "10.255.255.11"},
		{PathTunnelUDPPort, 4789},
		{PathVLANs, []any{
			map[string]any{"id": 10, "name": "DATA"},
			map[string]any{"id": 20, "name": "VOICE"},
		}},
		{PathTunnelVLANMappings, []any{
			map[string]any{"vlan": 10, "vni": 10010},
		}},
		{PathRoutingPeerGroups, []any{
			map[string]any{"name": "SPINE_UNDERLAY", "remote_as": "external", "send_community": "extended"},
		}},
		{PathOverlayRouteReflectorClient, true},
	}

	for _, c := range cases {
		if err := Apply(rec, c.path, c.value); err != nil {
			t.Fatalf("apply %s: %v", c.path, err)
		}
	}

	if rec.Routing.AutonomousSystem == nil || *rec.Routing.AutonomousSystem != 65001 {
		t.Errorf("autonomous_system not decoded: %v", rec.Routing.AutonomousSystem)
	}
	if rec.Routing.RouterID == nil || *rec.Routing.RouterID != "10.255.255.11" {
		t.Errorf("router_id not decoded: %v", rec.Routing.RouterID)
	}
	if rec.Tunnel.UDPPort == nil || *rec.Tunnel.UDPPort != 4789 {
		t.Errorf("udp_port not decoded: %v", rec.Tunnel.UDPPort)
	}
	if len(rec.VLANs) != 2 || rec.VLANs[0].ID != 10 || rec.VLANs[1].Name != "VOICE" {
		t.Errorf("vlans not decoded: %+v", rec.VLANs)
	}
	if len(rec.Tunnel.VLANMappings) != 1 || rec.Tunnel.VLANMappings[0].VNI != 10010 {
		t.Errorf("vlan_mappings not decoded: %+v", rec.Tunnel.VLANMappings)
	}
	if len(rec.Routing.PeerGroups) != 1 {
		t.Fatalf("peer_groups not decoded: %+v", rec.Routing.PeerGroups)
	}
	pg := rec.Routing.PeerGroups[0]
	if pg.Name != "SPINE_UNDERLAY" || pg.RemoteAS == nil || *pg.RemoteAS != "external" {
		t.Errorf("peer group fields not decoded: %+v", pg)
	}
	if rec.Routing.Overlay.RouteReflectorClient == nil || !*rec.Routing.Overlay.RouteReflectorClient {
		t.Errorf("route_reflector_client not decoded: %v", rec.Routing.Overlay.RouteReflectorClient)
	}
}

func TestApply_RejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		path  Path
		value any
	}{
		{
			name:  "string where number expected",
			path:  PathRoutingASN,
			value: "not-a-number",
		},
		{
			name:  "unknown key inside typed value",
			path:  PathRoutingNeighbors,
			value: []any{map[string]any{"address": "10.1.1.0", "bogus": true}},
		},
		{
			name:  "scalar where list expected",
			path:  PathVLANs,
			value: 10,
		},
		{
			name:  "negative value for unsigned field",
			path:  PathRoutingASN,
			value: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{}
			if err := Apply(rec, tt.path, tt.value); err == nil {
				t.Errorf("expected decode error for %s", tt.path)
			}
		})
	}
}

func TestApply_NilValueLeavesFieldUnset(t *testing.T) {
	rec := &Record{}
	if err := Apply(rec, PathRoutingASN, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Routing.AutonomousSystem != nil {
		t.Errorf("expected field to stay unset, got %v", *rec.Routing.AutonomousSystem)
	}
}
