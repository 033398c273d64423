package fabric

// Record is the resolved configuration for a single device. It is built
// fresh for every compile run by the resolver, frozen once validation
// passes, and discarded after the renderer consumes it. Optional values are
// pointers (or nilable slices): presence is part of the type, never inferred
// at render time.
type Record struct {
	// Device is the identity snapshot taken at resolve time.
	Device DeviceIdentity `json:"device"`

	// DNSServers are rendered as name-server lines, in order.
	DNSServers []string `json:"dns_servers,omitempty"`

	// NTPServers are rendered as ntp server lines, in order.
	NTPServers []string `json:"ntp_servers,omitempty"`

	// SyslogServers are rendered as logging host lines, in order.
	SyslogServers []string `json:"syslog_servers,omitempty"`

	// SNMP holds the SNMP agent settings.
	SNMP *SNMP `json:"snmp,omitempty"`

	// Mgmt describes the out-of-band management interface.
	Mgmt *MgmtInterface `json:"mgmt,omitempty"`

	// VLANs are the layer-2 segments declared on the device. IDs must be
	// unique within a record.
	VLANs []VLAN `json:"vlans,omitempty"`

	// Interfaces are the physical and logical ports. Names must be unique
	// within a record.
	Interfaces []Interface `json:"interfaces,omitempty"`

	// Routing is the BGP configuration block.
	Routing Routing `json:"routing"`

	// Tunnel is the VXLAN overlay endpoint configuration.
	Tunnel Tunnel `json:"tunnel"`

	// Extra preserves unknown field paths from context blobs, keyed by
	// dotted path. Carried for diagnostics only: never rendered and never
	// consulted by validation.
	Extra map[string]any `json:"extra,omitempty"`
}

// DeviceIdentity is the immutable device descriptor embedded into a record.
type DeviceIdentity struct {
	Hostname    string `json:"hostname"`
	Role        Role   `json:"role"`
	Site        string `json:"site,omitempty"`
	Platform    string `json:"platform,omitempty"`
	MgmtAddress string `json:"mgmt_address,omitempty"`
}

// SNMP holds SNMP agent settings.
type SNMP struct {
	Community string `json:"community,omitempty"`
	Location  string `json:"location,omitempty"`
	Contact   string `json:"contact,omitempty"`
}

// MgmtInterface describes the management port. Address is CIDR notation.
type MgmtInterface struct {
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	Description *string `json:"description,omitempty"`
}

// VLAN is a vid/name pair.
type VLAN struct {
	ID   uint16 `json:"id"`
	Name string `json:"name,omitempty"`
}

// InterfaceMode selects the switchport/routed behavior of an interface.
type InterfaceMode string

const (
	ModeAccess InterfaceMode = "access"
	ModeTrunk  InterfaceMode = "trunk"
	ModeRouted InterfaceMode = "routed"
)

// Interface is one port declaration. Exactly the fields matching Mode are
// consulted: AccessVLAN for access, AllowedVLANs for trunk, Address for
// routed.
type Interface struct {
	Name         string        `json:"name"`
	Enabled      bool          `json:"enabled"`
	Description  *string       `json:"description,omitempty"`
	Mode         InterfaceMode `json:"mode"`
	AccessVLAN   *uint16       `json:"access_vlan,omitempty"`
	AllowedVLANs []uint16      `json:"allowed_vlans,omitempty"`
	Address      *string       `json:"address,omitempty"`
}

// Routing is the BGP block of a record.
type Routing struct {
	AutonomousSystem *uint32          `json:"autonomous_system,omitempty"`
	RouterID         *string          `json:"router_id,omitempty"`
	RouterIDLoopback *Loopback        `json:"router_id_loopback,omitempty"`
	MaximumPaths     *uint8           `json:"maximum_paths,omitempty"`
	ECMPPaths        *uint8           `json:"ecmp_paths,omitempty"`
	PeerGroups       []PeerGroup      `json:"peer_groups,omitempty"`
	Neighbors        []Neighbor       `json:"neighbors,omitempty"`
	AddressFamilies  []AddressFamily  `json:"address_families,omitempty"`
	Redistribute     []Redistribution `json:"redistribute,omitempty"`
	PrefixLists      []PrefixList     `json:"prefix_lists,omitempty"`
	RouteMaps        []RouteMap       `json:"route_maps,omitempty"`
	Overlay          Overlay          `json:"overlay"`
}

// Loopback is a numbered loopback interface with a /32 address.
type Loopback struct {
	ID      uint8  `json:"id"`
	Address string `json:"address"`
}

// PeerGroup is a named template of BGP session parameters. RemoteAS is
// an AS number or the keyword "external"/"internal", rendered verbatim.
type PeerGroup struct {
	Name          string  `json:"name"`
	RemoteAS      *string `json:"remote_as,omitempty"`
	SendCommunity *string `json:"send_community,omitempty"`
	UpdateSource  *string `json:"update_source,omitempty"`
	EBGPMultihop  *uint8  `json:"ebgp_multihop,omitempty"`
}

// Neighbor is one BGP session. A neighbor belongs to at most one peer
// group; membership in several groups at once is not representable.
type Neighbor struct {
	Address     string  `json:"address"`
	PeerGroup   *string `json:"peer_group,omitempty"`
	RemoteAS    *string `json:"remote_as,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AddressFamily activates neighbors under a named family. Only neighbors
// listed here are active in the family.
type AddressFamily struct {
	Name      string       `json:"name"`
	Neighbors []Activation `json:"neighbors,omitempty"`
}

// Activation enables one neighbor or peer group inside an address family,
// with optional route-map attachments.
type Activation struct {
	Neighbor    string  `json:"neighbor"`
	Activate    bool    `json:"activate"`
	RouteMapIn  *string `json:"route_map_in,omitempty"`
	RouteMapOut *string `json:"route_map_out,omitempty"`
}

// Redistribution injects routes from another protocol into BGP.
type Redistribution struct {
	Protocol string  `json:"protocol"`
	RouteMap *string `json:"route_map,omitempty"`
}

// PrefixList is a named, ordered list of prefix rules.
type PrefixList struct {
	Name  string       `json:"name"`
	Rules []PrefixRule `json:"rules,omitempty"`
}

// PrefixRule is one sequenced prefix-list entry.
type PrefixRule struct {
	Sequence uint32 `json:"sequence"`
	Action   string `json:"action"`
	Prefix   string `json:"prefix"`
	LE       *uint8 `json:"le,omitempty"`
	GE       *uint8 `json:"ge,omitempty"`
}

// RouteMap is a named, ordered policy.
type RouteMap struct {
	Name    string          `json:"name"`
	Entries []RouteMapEntry `json:"entries,omitempty"`
}

// RouteMapEntry is one sequenced route-map clause.
type RouteMapEntry struct {
	Sequence           uint32  `json:"sequence"`
	Action             string  `json:"action"`
	Description        *string `json:"description,omitempty"`
	MatchPrefixList    *string `json:"match_prefix_list,omitempty"`
	SetLocalPreference *uint32 `json:"set_local_preference,omitempty"`
	SetCommunity       *string `json:"set_community,omitempty"`
}

// Overlay is the EVPN sub-block of the routing configuration.
type Overlay struct {
	Neighbors            []OverlayNeighbor `json:"neighbors,omitempty"`
	RouteReflectorClient *bool             `json:"route_reflector_client,omitempty"`
}

// OverlayNeighbor is one EVPN session activation.
type OverlayNeighbor struct {
	Address       string  `json:"address"`
	Encapsulation *string `json:"encapsulation,omitempty"`
}

// Tunnel is the VXLAN block of a record.
type Tunnel struct {
	SourceLoopback  *Loopback     `json:"source_loopback,omitempty"`
	SourceInterface *string       `json:"source_interface,omitempty"`
	UDPPort         *uint16       `json:"udp_port,omitempty"`
	VLANMappings    []VLANMapping `json:"vlan_mappings,omitempty"`
	FloodLists      []FloodList   `json:"flood_lists,omitempty"`
}

// VLANMapping associates a local VLAN with an overlay segment identifier.
type VLANMapping struct {
	VLAN uint16 `json:"vlan"`
	VNI  uint32 `json:"vni"`
}

// FloodList is the static head-end replication list for one VLAN.
type FloodList struct {
	VLAN  uint16   `json:"vlan"`
	VTEPs []string `json:"vteps,omitempty"`
}

// HasRouteMap reports whether the record defines a route-map by name.
func (r *Record) HasRouteMap(name string) bool {
	for _, rm := range r.Routing.RouteMaps {
		if rm.Name == name {
			return true
		}
	}
	return false
}

// HasPrefixList reports whether the record defines a prefix-list by name.
func (r *Record) HasPrefixList(name string) bool {
	for _, pl := range r.Routing.PrefixLists {
		if pl.Name == name {
			return true
		}
	}
	return false
}

// HasVLAN reports whether the record declares a VLAN id.
func (r *Record) HasVLAN(id uint16) bool {
	for _, v := range r.VLANs {
		if v.ID == id {
			return true
		}
	}
	return false
}

// PeerGroupNames returns the declared peer-group names in order.
func (r *Record) PeerGroupNames() []string {
	names := make([]string, 0, len(r.Routing.PeerGroups))
	for _, pg := range r.Routing.PeerGroups {
		names = append(names, pg.Name)
	}
	return names
}
