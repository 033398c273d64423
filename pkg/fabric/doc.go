// Package fabric defines the typed configuration model for one fabric
// device and the rules that govern it.
//
// # Overview
//
// A Record is the single resolved mapping for a device: identity snapshot,
// global services (DNS/NTP/syslog/SNMP), management interface, VLANs,
// interfaces, the BGP routing block, and the VXLAN tunnel block. Optional
// values are pointers; presence is part of the type and is decided during
// resolution, never probed at render time.
//
// The mergeable surface of a Record is a fixed, enumerated field-path set
// (see Path). Extract partitions a raw blob payload into enumerated paths
// plus an opaque extension map for unknown fields; Apply decodes a winning
// raw value into the matching typed field. Unknown fields survive the merge
// for diagnostics but never influence validation or rendering.
//
// Validate applies the role-conditioned required-field table and the record
// invariants exhaustively: every missing or invalid path is collected before
// reporting, and nothing is ever substituted for an absent required value.
package fabric
