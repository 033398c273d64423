package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		asnRangePolicy(),
		routerIDFormatPolicy(),
		vniRangePolicy(),
		duplicateRouterIDPolicy(),
		overlayReplicationPolicy(),
	}
}

// asnRangePolicy warns when a device uses a public AS number.
func asnRangePolicy() Policy {
	return Policy{
		Name:        "bgp-asn-range",
		Description: "Warns when a device's BGP AS number is outside the private ranges",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"bgp", "asn"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package loom.policies.asn

import rego.v1

# Private AS ranges: 64512-65534 (16-bit) and 4200000000-4294967294 (32-bit)
deny contains violation if {
	asn := input.record.routing.autonomous_system
	not private_asn(asn)
	violation := {
		"message": sprintf("BGP AS %d is not in a private range (64512-65534 or 4200000000-4294967294)", [asn]),
		"severity": "warning",
		"device": input.device.hostname,
	}
}

private_asn(asn) if {
	asn >= 64512
	asn <= 65534
}

private_asn(asn) if {
	asn >= 4200000000
	asn <= 4294967294
}`,
	}
}

// routerIDFormatPolicy rejects router-ids that are not IPv4 dotted quads.
func routerIDFormatPolicy() Policy {
	return Policy{
		Name:        "router-id-format",
		Description: "Requires BGP router-ids to be valid IPv4 dotted-quad addresses",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"bgp", "router-id"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package loom.policies.routerid

import rego.v1

deny contains violation if {
	rid := input.record.routing.router_id
	not valid_ipv4(rid)
	violation := {
		"message": sprintf("Router-id %q is not a valid IPv4 address", [rid]),
		"severity": "error",
		"device": input.device.hostname,
	}
}

valid_ipv4(addr) if {
	octets := split(addr, ".")
	count(octets) == 4
	every octet in octets {
		regex.match("^[0-9]{1,3}$", octet)
		to_number(octet) <= 255
	}
}`,
	}
}

// vniRangePolicy rejects VXLAN segment identifiers outside the 24-bit space.
func vniRangePolicy() Policy {
	return Policy{
		Name:        "vni-range",
		Description: "Requires VXLAN network identifiers to fit the 24-bit space and stay off zero",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"vxlan", "vni"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package loom.policies.vni

import rego.v1

max_vni := 16777215

deny contains violation if {
	some mapping in input.record.tunnel.vlan_mappings
	mapping.vni > max_vni
	violation := {
		"message": sprintf("VLAN %d maps to VNI %d above the 24-bit maximum %d", [mapping.vlan, mapping.vni, max_vni]),
		"severity": "error",
		"device": input.device.hostname,
	}
}

deny contains violation if {
	some mapping in input.record.tunnel.vlan_mappings
	mapping.vni == 0
	violation := {
		"message": sprintf("VLAN %d maps to VNI 0, which is reserved", [mapping.vlan]),
		"severity": "error",
		"device": input.device.hostname,
	}
}`,
	}
}

// duplicateRouterIDPolicy catches router-id collisions across the fabric.
// It only fires during fabric-wide evaluation.
func duplicateRouterIDPolicy() Policy {
	return Policy{
		Name:        "duplicate-router-id",
		Description: "Rejects fabrics where two devices share a BGP router-id",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"fabric", "bgp"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package loom.policies.fabric

import rego.v1

# Every colliding pair is reported, not just the first.
deny contains violation if {
	some i, a in input.fabric
	some j, b in input.fabric
	i < j
	rid := a.routing.router_id
	rid == b.routing.router_id
	violation := {
		"message": sprintf("Devices %s and %s share router-id %s", [a.device.hostname, b.device.hostname, rid]),
		"severity": "error",
		"device": b.device.hostname,
	}
}`,
	}
}

// overlayReplicationPolicy warns when static flood lists and EVPN peers
// are configured side by side.
func overlayReplicationPolicy() Policy {
	return Policy{
		Name:        "overlay-replication",
		Description: "Warns when static VXLAN flood lists and EVPN overlay peers are mixed on one device",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"vxlan", "evpn"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package loom.policies.overlay

import rego.v1

deny contains violation if {
	count(input.record.tunnel.flood_lists) > 0
	count(input.record.routing.overlay.neighbors) > 0
	violation := {
		"message": "Static flood lists and EVPN overlay peers are both configured; pick one replication mode",
		"severity": "warning",
		"device": input.device.hostname,
	}
}`,
	}
}
