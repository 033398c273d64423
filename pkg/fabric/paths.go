package fabric

// Path identifies one mergeable unit of a Record. The set below is the
// complete enumeration: context blobs are merged path by path, and a path
// present in a higher-precedence tier replaces the lower tier's value
// wholesale. Lists and nested mappings are never concatenated or
// deep-merged across tiers.
type Path string

const (
	PathDNSServers    Path = "dns_servers"
	PathNTPServers    Path = "ntp_servers"
	PathSyslogServers Path = "syslog_servers"
	PathSNMP          Path = "snmp"
	PathMgmt          Path = "mgmt"
	PathVLANs         Path = "vlans"
	PathInterfaces    Path = "interfaces"

	PathTunnelSourceLoopback  Path = "tunnel.source_loopback"
	PathTunnelSourceInterface Path = "tunnel.source_interface"
	PathTunnelUDPPort         Path = "tunnel.udp_port"
	PathTunnelVLANMappings    Path = "tunnel.vlan_mappings"
	PathTunnelFloodLists      Path = "tunnel.flood_lists"

	PathRoutingASN              Path = "routing.autonomous_system"
	PathRoutingRouterID         Path = "routing.router_id"
	PathRoutingRouterIDLoopback Path = "routing.router_id_loopback"
	PathRoutingMaximumPaths     Path = "routing.maximum_paths"
	PathRoutingECMPPaths        Path = "routing.ecmp_paths"
	PathRoutingPeerGroups       Path = "routing.peer_groups"
	PathRoutingNeighbors        Path = "routing.neighbors"
	PathRoutingAddressFamilies  Path = "routing.address_families"
	PathRoutingRedistribute     Path = "routing.redistribute"
	PathRoutingPrefixLists      Path = "routing.prefix_lists"
	PathRoutingRouteMaps        Path = "routing.route_maps"

	PathOverlayNeighbors            Path = "routing.overlay.neighbors"
	PathOverlayRouteReflectorClient Path = "routing.overlay.route_reflector_client"
)

// allPaths is the canonical iteration order for merge and provenance
// reporting. Resolver output must not depend on map iteration order.
var allPaths = []Path{
	PathDNSServers,
	PathNTPServers,
	PathSyslogServers,
	PathSNMP,
	PathMgmt,
	PathVLANs,
	PathInterfaces,
	PathTunnelSourceLoopback,
	PathTunnelSourceInterface,
	PathTunnelUDPPort,
	PathTunnelVLANMappings,
	PathTunnelFloodLists,
	PathRoutingASN,
	PathRoutingRouterID,
	PathRoutingRouterIDLoopback,
	PathRoutingMaximumPaths,
	PathRoutingECMPPaths,
	PathRoutingPeerGroups,
	PathRoutingNeighbors,
	PathRoutingAddressFamilies,
	PathRoutingRedistribute,
	PathRoutingPrefixLists,
	PathRoutingRouteMaps,
	PathOverlayNeighbors,
	PathOverlayRouteReflectorClient,
}

// AllPaths returns the enumerated field-path set in canonical order.
func AllPaths() []Path {
	out := make([]Path, len(allPaths))
	copy(out, allPaths)
	return out
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return string(p)
}

// subpath tables drive the payload walk in Extract. Keys not listed here
// under a known group are unknown fields and land in the extension map.
var (
	tunnelPaths = map[string]Path{
		"source_loopback":  PathTunnelSourceLoopback,
		"source_interface": PathTunnelSourceInterface,
		"udp_port":         PathTunnelUDPPort,
		"vlan_mappings":    PathTunnelVLANMappings,
		"flood_lists":      PathTunnelFloodLists,
	}

	routingPaths = map[string]Path{
		"autonomous_system":  PathRoutingASN,
		"router_id":          PathRoutingRouterID,
		"router_id_loopback": PathRoutingRouterIDLoopback,
		"maximum_paths":      PathRoutingMaximumPaths,
		"ecmp_paths":         PathRoutingECMPPaths,
		"peer_groups":        PathRoutingPeerGroups,
		"neighbors":          PathRoutingNeighbors,
		"address_families":   PathRoutingAddressFamilies,
		"redistribute":       PathRoutingRedistribute,
		"prefix_lists":       PathRoutingPrefixLists,
		"route_maps":         PathRoutingRouteMaps,
	}

	overlayPaths = map[string]Path{
		"neighbors":              PathOverlayNeighbors,
		"route_reflector_client": PathOverlayRouteReflectorClient,
	}

	topLevelPaths = map[string]Path{
		"dns_servers":    PathDNSServers,
		"ntp_servers":    PathNTPServers,
		"syslog_servers": PathSyslogServers,
		"snmp":           PathSNMP,
		"mgmt":           PathMgmt,
		"vlans":          PathVLANs,
		"interfaces":     PathInterfaces,
	}
)
