package resolver

import (
	"errors"
	"reflect"
	"testing"

	"github.com/openloom/openloom/pkg/fabric"
)

var leaf1 = fabric.DeviceIdentity{
	Hostname: "leaf1",
	Role:     fabric.RoleLeaf,
	Site:     "dc1",
	Platform: "eos",
}

func TestResolve_Deterministic(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/defaults.yaml", Tier: TierGroup, Payload: map[string]any{
			"dns_servers": []any{"10.0.0.53", "10.0.1.53"},
			"ntp_servers": []any{"10.0.0.123"},
		}},
		{Source: "contexts/role-leaf.yaml", Tier: TierRole, Payload: map[string]any{
			"routing": map[string]any{"maximum_paths": 4},
		}},
	}

	first, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	second, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if !reflect.DeepEqual(first.Record, second.Record) {
		t.Error("records differ between identical runs")
	}
	if !reflect.DeepEqual(first.Provenance, second.Provenance) {
		t.Error("provenance differs between identical runs")
	}
}

func TestResolve_OrderIndependent(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/defaults.yaml", Tier: TierGroup, Payload: map[string]any{
			"dns_servers": []any{"10.0.0.53"},
			"widgets":     "group",
		}},
		{Source: "contexts/site-dc1.yaml", Tier: TierSite, Weight: 10, Payload: map[string]any{
			"ntp_servers": []any{"10.1.0.123"},
		}},
		{Source: "contexts/leaf1.yaml", Tier: TierDevice, Payload: map[string]any{
			"dns_servers": []any{"10.9.0.53"},
			"widgets":     "device",
		}},
	}

	forward, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	reversed := []Blob{blobs[2], blobs[1], blobs[0]}
	backward, err := Resolve(leaf1, reversed)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if !reflect.DeepEqual(forward.Record, backward.Record) {
		t.Error("records differ when blob order changes")
	}
	if !reflect.DeepEqual(forward.Provenance, backward.Provenance) {
		t.Error("provenance differs when blob order changes")
	}
	if got := forward.Record.DNSServers; len(got) != 1 || got[0] != "10.9.0.53" {
		t.Errorf("dns_servers = %v, want device value", got)
	}
}

func TestResolve_TierPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		winner Tier
		loser  Tier
	}{
		{name: "override beats device", winner: TierOverride, loser: TierDevice},
		{name: "device beats site", winner: TierDevice, loser: TierSite},
		{name: "site beats role", winner: TierSite, loser: TierRole},
		{name: "role beats group", winner: TierRole, loser: TierGroup},
		{name: "device beats role", winner: TierDevice, loser: TierRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := []Blob{
				// The losing tier carries a far higher weight: weight
				// must never cross tiers.
				{Source: "lose", Tier: tt.loser, Weight: 1000, Payload: map[string]any{
					"syslog_servers": []any{"10.0.0.1"},
				}},
				{Source: "win", Tier: tt.winner, Payload: map[string]any{
					"syslog_servers": []any{"10.9.9.9"},
				}},
			}

			res, err := Resolve(leaf1, blobs)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if got := res.Record.SyslogServers; len(got) != 1 || got[0] != "10.9.9.9" {
				t.Errorf("syslog_servers = %v, want value from %s tier", got, tt.winner)
			}
			if len(res.Provenance) != 1 || res.Provenance[0].Source != "win" {
				t.Errorf("provenance = %v, want single entry from %q", res.Provenance, "win")
			}
		})
	}
}

func TestResolve_WeightOrdersWithinTier(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/site-dc1-base.yaml", Tier: TierSite, Weight: 10, Payload: map[string]any{
			"ntp_servers": []any{"10.0.0.123"},
		}},
		{Source: "contexts/site-dc1-lab.yaml", Tier: TierSite, Weight: 50, Payload: map[string]any{
			"ntp_servers": []any{"10.0.9.123"},
		}},
	}

	res, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got := res.Record.NTPServers; len(got) != 1 || got[0] != "10.0.9.123" {
		t.Errorf("ntp_servers = %v, want the weight-50 value", got)
	}
	if res.Provenance[0].Weight != 50 {
		t.Errorf("provenance weight = %d, want 50", res.Provenance[0].Weight)
	}
}

func TestResolve_EqualWeightIsAmbiguous(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/site-a.yaml", Tier: TierSite, Weight: 10, Payload: map[string]any{
			"ntp_servers": []any{"10.0.0.123"},
			"routing":     map[string]any{"maximum_paths": 4},
		}},
		{Source: "contexts/site-b.yaml", Tier: TierSite, Weight: 10, Payload: map[string]any{
			"ntp_servers": []any{"10.0.9.123"},
			"routing":     map[string]any{"maximum_paths": 8},
		}},
		{Source: "contexts/defaults.yaml", Tier: TierGroup, Payload: map[string]any{
			"dns_servers": []any{"10.0.0.53"},
		}},
	}

	_, err := Resolve(leaf1, blobs)
	if err == nil {
		t.Fatal("expected ambiguity error, got nil")
	}

	var ambErr *AmbiguityError
	if !errors.As(err, &ambErr) {
		t.Fatalf("expected *AmbiguityError, got %T: %v", err, err)
	}
	if ambErr.Device != "leaf1" {
		t.Errorf("device = %q, want leaf1", ambErr.Device)
	}
	// Both conflicted paths are reported in one error, canonical order,
	// sources sorted. The uncontested dns_servers path does not appear.
	if len(ambErr.Conflicts) != 2 {
		t.Fatalf("conflicts = %v, want 2 entries", ambErr.Conflicts)
	}
	if ambErr.Conflicts[0].Path != "ntp_servers" || ambErr.Conflicts[1].Path != "routing.maximum_paths" {
		t.Errorf("conflict paths = %q, %q", ambErr.Conflicts[0].Path, ambErr.Conflicts[1].Path)
	}
	wantSources := []string{"contexts/site-a.yaml", "contexts/site-b.yaml"}
	for _, c := range ambErr.Conflicts {
		if !reflect.DeepEqual(c.Sources, wantSources) {
			t.Errorf("conflict sources = %v, want %v", c.Sources, wantSources)
		}
		if c.Tier != TierSite || c.Weight != 10 {
			t.Errorf("conflict coordinates = %s/%d, want site/10", c.Tier, c.Weight)
		}
	}
}

func TestResolve_HigherTierSettlesLowerTie(t *testing.T) {
	// Two role blobs tie, but a device blob decides the path: the tie on
	// the losing tier is irrelevant.
	blobs := []Blob{
		{Source: "contexts/role-a.yaml", Tier: TierRole, Payload: map[string]any{
			"ntp_servers": []any{"10.0.0.123"},
		}},
		{Source: "contexts/role-b.yaml", Tier: TierRole, Payload: map[string]any{
			"ntp_servers": []any{"10.0.1.123"},
		}},
		{Source: "contexts/leaf1.yaml", Tier: TierDevice, Payload: map[string]any{
			"ntp_servers": []any{"10.9.9.123"},
		}},
	}

	res, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got := res.Record.NTPServers; len(got) != 1 || got[0] != "10.9.9.123" {
		t.Errorf("ntp_servers = %v, want the device value", got)
	}
}

func TestResolve_WholesaleReplacement(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/role-leaf.yaml", Tier: TierRole, Payload: map[string]any{
			"vlans": []any{
				map[string]any{"id": 10, "name": "DATA"},
				map[string]any{"id": 20, "name": "VOICE"},
			},
			"snmp": map[string]any{"community": "public", "location": "dc1"},
		}},
		{Source: "contexts/leaf1.yaml", Tier: TierDevice, Payload: map[string]any{
			"vlans": []any{
				map[string]any{"id": 30, "name": "GUEST"},
			},
			"snmp": map[string]any{"community": "lab"},
		}},
	}

	res, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// Lists replace, never concatenate.
	if len(res.Record.VLANs) != 1 || res.Record.VLANs[0].ID != 30 {
		t.Errorf("vlans = %v, want only vlan 30", res.Record.VLANs)
	}
	// Mappings replace wholesale: the role blob's location does not leak
	// into the winning snmp value.
	if res.Record.SNMP == nil || res.Record.SNMP.Community != "lab" {
		t.Fatalf("snmp = %+v, want community lab", res.Record.SNMP)
	}
	if res.Record.SNMP.Location != "" {
		t.Errorf("snmp.location = %q, want empty after wholesale replace", res.Record.SNMP.Location)
	}
}

func TestResolve_MalformedValueFailsDevice(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/leaf1.yaml", Tier: TierDevice, Payload: map[string]any{
			"routing": map[string]any{"autonomous_system": "not-a-number"},
		}},
	}

	_, err := Resolve(leaf1, blobs)
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}

	var blobErr *BlobError
	if !errors.As(err, &blobErr) {
		t.Fatalf("expected *BlobError, got %T: %v", err, err)
	}
	if blobErr.Source != "contexts/leaf1.yaml" {
		t.Errorf("source = %q", blobErr.Source)
	}
	if blobErr.Path != "routing.autonomous_system" {
		t.Errorf("path = %q, want routing.autonomous_system", blobErr.Path)
	}
}

func TestResolve_NonMappingGroupFailsDevice(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/leaf1.yaml", Tier: TierDevice, Payload: map[string]any{
			"tunnel": "vxlan",
		}},
	}

	_, err := Resolve(leaf1, blobs)
	var blobErr *BlobError
	if !errors.As(err, &blobErr) {
		t.Fatalf("expected *BlobError, got %T: %v", err, err)
	}
}

func TestResolve_UnknownPathsStayOpaque(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/b.yaml", Tier: TierSite, Payload: map[string]any{
			"widgets": "from-b",
			"routing": map[string]any{"overlay": map[string]any{"mystery_knob": true}},
		}},
		{Source: "contexts/a.yaml", Tier: TierSite, Payload: map[string]any{
			"widgets": "from-a",
		}},
	}

	res, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// Unknown paths never conflict; the tie resolves to the smallest
	// source name regardless of blob order.
	if got := res.Record.Extra["widgets"]; got != "from-a" {
		t.Errorf("extra widgets = %v, want from-a", got)
	}
	if got := res.Record.Extra["routing.overlay.mystery_knob"]; got != true {
		t.Errorf("extra mystery_knob = %v, want true", got)
	}
	if len(res.Record.Extra) != 2 {
		t.Errorf("extra = %v, want exactly two entries", res.Record.Extra)
	}
}

func TestResolve_NilValueMasksLowerTier(t *testing.T) {
	blobs := []Blob{
		{Source: "contexts/role-leaf.yaml", Tier: TierRole, Payload: map[string]any{
			"routing": map[string]any{"router_id": "10.255.255.11"},
		}},
		{Source: "contexts/leaf1.yaml", Tier: TierDevice, Payload: map[string]any{
			"routing": map[string]any{"router_id": nil},
		}},
	}

	res, err := Resolve(leaf1, blobs)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// The device blob wins the path with an empty value, so the field is
	// unset and required-field validation will report it. Nothing falls
	// back to the role value.
	if res.Record.Routing.RouterID != nil {
		t.Errorf("router_id = %v, want unset", *res.Record.Routing.RouterID)
	}
	if len(res.Provenance) != 1 || res.Provenance[0].Source != "contexts/leaf1.yaml" {
		t.Errorf("provenance = %v, want the device blob", res.Provenance)
	}
}

func TestResolve_StampsIdentity(t *testing.T) {
	res, err := Resolve(leaf1, nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Record.Device != leaf1 {
		t.Errorf("identity = %+v, want %+v", res.Record.Device, leaf1)
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{in: "site", want: TierSite},
		{in: " Role\n", want: TierRole},
		{in: "OVERRIDE", want: TierOverride},
		{in: "rack", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTier(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTier(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
