package fabric

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Extraction is a blob payload split into enumerated paths and unknown
// fields.
type Extraction struct {
	// Values holds the raw value per enumerated path the payload sets.
	// A nil value is a deliberate presence marker: the path is set but
	// carries no data, so the typed field stays unset and required-field
	// validation reports it.
	Values map[Path]any

	// Extra holds unknown field paths (dotted) and their raw values.
	Extra map[string]any
}

// Extract walks a blob payload and partitions it into the enumerated
// field-path set plus the opaque extension mapping. The walk is total:
// every key in the payload ends up in exactly one of the two maps. A
// non-mapping value where a group mapping is required (routing, tunnel,
// routing.overlay) is a structural error.
func Extract(payload map[string]any) (*Extraction, error) {
	ex := &Extraction{
		Values: make(map[Path]any),
		Extra:  make(map[string]any),
	}

	for key, val := range payload {
		switch key {
		case "routing":
			if err := ex.walkGroup(key, val, routingPaths, "overlay", overlayPaths); err != nil {
				return nil, err
			}
		case "tunnel":
			if err := ex.walkGroup(key, val, tunnelPaths, "", nil); err != nil {
				return nil, err
			}
		default:
			if p, ok := topLevelPaths[key]; ok {
				ex.Values[p] = val
			} else {
				ex.Extra[key] = val
			}
		}
	}

	return ex, nil
}

// walkGroup descends one level into a known group mapping, routing each
// subkey to its enumerated path, a nested sub-group, or the extension map.
func (ex *Extraction) walkGroup(group string, val any, paths map[string]Path, nested string, nestedPaths map[string]Path) error {
	if val == nil {
		return nil
	}
	m, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("field %s: expected a mapping, got %T", group, val)
	}

	for key, sub := range m {
		if key == nested && nestedPaths != nil {
			if err := ex.walkGroup(group+"."+key, sub, nestedPaths, "", nil); err != nil {
				return err
			}
			continue
		}
		if p, ok := paths[key]; ok {
			ex.Values[p] = sub
		} else {
			ex.Extra[group+"."+key] = sub
		}
	}
	return nil
}

// Apply decodes a raw path value into the matching Record field. Decoding
// is strict: unknown keys inside a typed value and incompatible kinds are
// structural errors (the blob is malformed). A nil value is accepted and
// leaves the field unset.
func Apply(rec *Record, path Path, value any) error {
	switch path {
	case PathDNSServers:
		return decodePath(path, value, &rec.DNSServers)
	case PathNTPServers:
		return decodePath(path, value, &rec.NTPServers)
	case PathSyslogServers:
		return decodePath(path, value, &rec.SyslogServers)
	case PathSNMP:
		return decodePath(path, value, &rec.SNMP)
	case PathMgmt:
		return decodePath(path, value, &rec.Mgmt)
	case PathVLANs:
		return decodePath(path, value, &rec.VLANs)
	case PathInterfaces:
		return decodePath(path, value, &rec.Interfaces)
	case PathTunnelSourceLoopback:
		return decodePath(path, value, &rec.Tunnel.SourceLoopback)
	case PathTunnelSourceInterface:
		return decodePath(path, value, &rec.Tunnel.SourceInterface)
	case PathTunnelUDPPort:
		return decodePath(path, value, &rec.Tunnel.UDPPort)
	case PathTunnelVLANMappings:
		return decodePath(path, value, &rec.Tunnel.VLANMappings)
	case PathTunnelFloodLists:
		return decodePath(path, value, &rec.Tunnel.FloodLists)
	case PathRoutingASN:
		return decodePath(path, value, &rec.Routing.AutonomousSystem)
	case PathRoutingRouterID:
		return decodePath(path, value, &rec.Routing.RouterID)
	case PathRoutingRouterIDLoopback:
		return decodePath(path, value, &rec.Routing.RouterIDLoopback)
	case PathRoutingMaximumPaths:
		return decodePath(path, value, &rec.Routing.MaximumPaths)
	case PathRoutingECMPPaths:
		return decodePath(path, value, &rec.Routing.ECMPPaths)
	case PathRoutingPeerGroups:
		return decodePath(path, value, &rec.Routing.PeerGroups)
	case PathRoutingNeighbors:
		return decodePath(path, value, &rec.Routing.Neighbors)
	case PathRoutingAddressFamilies:
		return decodePath(path, value, &rec.Routing.AddressFamilies)
	case PathRoutingRedistribute:
		return decodePath(path, value, &rec.Routing.Redistribute)
	case PathRoutingPrefixLists:
		return decodePath(path, value, &rec.Routing.PrefixLists)
	case PathRoutingRouteMaps:
		return decodePath(path, value, &rec.Routing.RouteMaps)
	case PathOverlayNeighbors:
		return decodePath(path, value, &rec.Routing.Overlay.Neighbors)
	case PathOverlayRouteReflectorClient:
		return decodePath(path, value, &rec.Routing.Overlay.RouteReflectorClient)
	}
	return fmt.Errorf("unknown field path %q", path)
}

func decodePath(path Path, value any, target any) error {
	if value == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return fmt.Errorf("field %s: %w", path, err)
	}

	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("field %s: %w", path, err)
	}
	return nil
}
