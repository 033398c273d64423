package render

import (
	"strconv"
	"strings"

	"github.com/openloom/openloom/pkg/fabric"
)

const indent = "   "

// sections is the fixed emission order. Each function returns its
// finished lines, or nothing when the governing field is absent; the
// caller separates non-empty sections with a bang line.
var sections = []func(*fabric.Record) []string{
	hostnameSection,
	dnsSection,
	ntpSection,
	bannerSection,
	snmpSection,
	syslogSection,
	mgmtSection,
	vlanSection,
	interfaceSection,
	tunnelSection,
	routerIDLoopbackSection,
	prefixListSection,
	routeMapSection,
	bgpSection,
}

func num(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func hostnameSection(rec *fabric.Record) []string {
	if rec.Device.Hostname == "" {
		return nil
	}
	return []string{"hostname " + rec.Device.Hostname}
}

func dnsSection(rec *fabric.Record) []string {
	var lines []string
	for _, s := range rec.DNSServers {
		lines = append(lines, "ip name-server "+s)
	}
	return lines
}

func ntpSection(rec *fabric.Record) []string {
	var lines []string
	for _, s := range rec.NTPServers {
		lines = append(lines, "ntp server "+s)
	}
	return lines
}

// bannerSection selects the banner text by a closed match over the role
// enumeration. Unrecognized roles take the default arm.
func bannerSection(rec *fabric.Record) []string {
	var summary string
	switch rec.Device.Role {
	case fabric.RoleSpine:
		summary = "fabric spine / underlay transit and overlay route reflection"
	case fabric.RoleLeaf:
		summary = "fabric leaf / host attachment and tunnel endpoint"
	case fabric.RoleBorder:
		summary = "fabric border / external connectivity"
	default:
		summary = "unclassified fabric device"
	}
	return []string{
		"banner motd",
		rec.Device.Hostname + ": " + summary,
		"Managed by loom. Manual changes are overwritten on the next build.",
		"EOF",
	}
}

func snmpSection(rec *fabric.Record) []string {
	if rec.SNMP == nil {
		return nil
	}
	var lines []string
	if rec.SNMP.Community != "" {
		lines = append(lines, "snmp-server community "+rec.SNMP.Community+" ro")
	}
	if rec.SNMP.Location != "" {
		lines = append(lines, "snmp-server location "+rec.SNMP.Location)
	}
	if rec.SNMP.Contact != "" {
		lines = append(lines, "snmp-server contact "+rec.SNMP.Contact)
	}
	return lines
}

func syslogSection(rec *fabric.Record) []string {
	var lines []string
	for _, s := range rec.SyslogServers {
		lines = append(lines, "logging host "+s)
	}
	return lines
}

func mgmtSection(rec *fabric.Record) []string {
	if rec.Mgmt == nil {
		return nil
	}
	lines := []string{"interface " + rec.Mgmt.Name}
	if rec.Mgmt.Description != nil {
		lines = append(lines, indent+"description "+*rec.Mgmt.Description)
	}
	if rec.Mgmt.Address != "" {
		lines = append(lines, indent+"ip address "+rec.Mgmt.Address)
	}
	return lines
}

func vlanSection(rec *fabric.Record) []string {
	var lines []string
	for i, v := range rec.VLANs {
		if i > 0 {
			lines = append(lines, "!")
		}
		lines = append(lines, "vlan "+num(uint64(v.ID)))
		if v.Name != "" {
			lines = append(lines, indent+"name "+v.Name)
		}
	}
	return lines
}

func interfaceSection(rec *fabric.Record) []string {
	var lines []string
	for i, iface := range rec.Interfaces {
		if i > 0 {
			lines = append(lines, "!")
		}
		lines = append(lines, "interface "+iface.Name)
		if iface.Description != nil {
			lines = append(lines, indent+"description "+*iface.Description)
		}
		if !iface.Enabled {
			lines = append(lines, indent+"shutdown")
		}
		switch iface.Mode {
		case fabric.ModeAccess:
			lines = append(lines, indent+"switchport mode access")
			if iface.AccessVLAN != nil {
				lines = append(lines, indent+"switchport access vlan "+num(uint64(*iface.AccessVLAN)))
			}
		case fabric.ModeTrunk:
			lines = append(lines, indent+"switchport mode trunk")
			if len(iface.AllowedVLANs) > 0 {
				ids := make([]string, len(iface.AllowedVLANs))
				for j, v := range iface.AllowedVLANs {
					ids[j] = num(uint64(v))
				}
				lines = append(lines, indent+"switchport trunk allowed vlan "+strings.Join(ids, ","))
			}
		case fabric.ModeRouted:
			lines = append(lines, indent+"no switchport")
			if iface.Address != nil {
				lines = append(lines, indent+"ip address "+*iface.Address)
			}
		}
	}
	return lines
}

// tunnelSection emits the tunnel-source loopback first, then the tunnel
// interface with its source, UDP port, segment mappings in list order and
// static flood lists.
func tunnelSection(rec *fabric.Record) []string {
	t := rec.Tunnel
	var lines []string
	if t.SourceLoopback != nil {
		lines = append(lines,
			"interface Loopback"+num(uint64(t.SourceLoopback.ID)),
			indent+"ip address "+t.SourceLoopback.Address,
		)
	}
	if t.SourceInterface == nil && t.UDPPort == nil && len(t.VLANMappings) == 0 && len(t.FloodLists) == 0 {
		return lines
	}
	if len(lines) > 0 {
		lines = append(lines, "!")
	}
	lines = append(lines, "interface Vxlan1")
	if t.SourceInterface != nil {
		lines = append(lines, indent+"vxlan source-interface "+*t.SourceInterface)
	}
	if t.UDPPort != nil {
		lines = append(lines, indent+"vxlan udp-port "+num(uint64(*t.UDPPort)))
	}
	for _, m := range t.VLANMappings {
		lines = append(lines, indent+"vxlan vlan "+num(uint64(m.VLAN))+" vni "+num(uint64(m.VNI)))
	}
	for _, fl := range t.FloodLists {
		lines = append(lines, indent+"vxlan vlan "+num(uint64(fl.VLAN))+" flood vtep "+strings.Join(fl.VTEPs, " "))
	}
	return lines
}

func routerIDLoopbackSection(rec *fabric.Record) []string {
	lb := rec.Routing.RouterIDLoopback
	if lb == nil {
		return nil
	}
	return []string{
		"interface Loopback" + num(uint64(lb.ID)),
		indent + "ip address " + lb.Address,
	}
}

func prefixListSection(rec *fabric.Record) []string {
	var lines []string
	for _, pl := range rec.Routing.PrefixLists {
		for _, r := range pl.Rules {
			line := "ip prefix-list " + pl.Name + " seq " + num(uint64(r.Sequence)) + " " + r.Action + " " + r.Prefix
			if r.GE != nil {
				line += " ge " + num(uint64(*r.GE))
			}
			if r.LE != nil {
				line += " le " + num(uint64(*r.LE))
			}
			lines = append(lines, line)
		}
	}
	return lines
}

func routeMapSection(rec *fabric.Record) []string {
	var lines []string
	for i, rm := range rec.Routing.RouteMaps {
		for j, e := range rm.Entries {
			if i > 0 || j > 0 {
				lines = append(lines, "!")
			}
			lines = append(lines, "route-map "+rm.Name+" "+e.Action+" "+num(uint64(e.Sequence)))
			if e.Description != nil {
				lines = append(lines, indent+"description "+*e.Description)
			}
			if e.MatchPrefixList != nil {
				lines = append(lines, indent+"match ip address prefix-list "+*e.MatchPrefixList)
			}
			if e.SetLocalPreference != nil {
				lines = append(lines, indent+"set local-preference "+num(uint64(*e.SetLocalPreference)))
			}
			if e.SetCommunity != nil {
				lines = append(lines, indent+"set community "+*e.SetCommunity)
			}
		}
	}
	return lines
}

// bgpSection emits the routing block: session parameters, peer-group
// definitions, neighbor assignments in list order with the peer-group
// line leading each neighbor, redistribution, the explicit address
// families, and last the EVPN overlay.
func bgpSection(rec *fabric.Record) []string {
	r := rec.Routing
	if r.AutonomousSystem == nil {
		return nil
	}
	lines := []string{"router bgp " + num(uint64(*r.AutonomousSystem))}
	if r.RouterID != nil {
		lines = append(lines, indent+"router-id "+*r.RouterID)
	}
	if r.MaximumPaths != nil {
		line := indent + "maximum-paths " + num(uint64(*r.MaximumPaths))
		if r.ECMPPaths != nil {
			line += " ecmp " + num(uint64(*r.ECMPPaths))
		}
		lines = append(lines, line)
	}

	for _, pg := range r.PeerGroups {
		lines = append(lines, indent+"neighbor "+pg.Name+" peer group")
		if pg.RemoteAS != nil {
			lines = append(lines, indent+"neighbor "+pg.Name+" remote-as "+*pg.RemoteAS)
		}
		if pg.UpdateSource != nil {
			lines = append(lines, indent+"neighbor "+pg.Name+" update-source "+*pg.UpdateSource)
		}
		if pg.EBGPMultihop != nil {
			lines = append(lines, indent+"neighbor "+pg.Name+" ebgp-multihop "+num(uint64(*pg.EBGPMultihop)))
		}
		if pg.SendCommunity != nil {
			lines = append(lines, indent+"neighbor "+pg.Name+" send-community "+*pg.SendCommunity)
		}
	}

	for _, n := range r.Neighbors {
		if n.PeerGroup != nil {
			lines = append(lines, indent+"neighbor "+n.Address+" peer group "+*n.PeerGroup)
		}
		if n.RemoteAS != nil {
			lines = append(lines, indent+"neighbor "+n.Address+" remote-as "+*n.RemoteAS)
		}
		if n.Description != nil {
			lines = append(lines, indent+"neighbor "+n.Address+" description "+*n.Description)
		}
	}

	for _, rd := range r.Redistribute {
		line := indent + "redistribute " + rd.Protocol
		if rd.RouteMap != nil {
			line += " route-map " + *rd.RouteMap
		}
		lines = append(lines, line)
	}

	for _, af := range r.AddressFamilies {
		lines = append(lines, indent+"!", indent+"address-family "+af.Name)
		for _, act := range af.Neighbors {
			if act.Activate {
				lines = append(lines, indent+indent+"neighbor "+act.Neighbor+" activate")
			}
			if act.RouteMapIn != nil {
				lines = append(lines, indent+indent+"neighbor "+act.Neighbor+" route-map "+*act.RouteMapIn+" in")
			}
			if act.RouteMapOut != nil {
				lines = append(lines, indent+indent+"neighbor "+act.Neighbor+" route-map "+*act.RouteMapOut+" out")
			}
		}
	}

	if len(r.Overlay.Neighbors) > 0 {
		lines = append(lines, indent+"!", indent+"address-family evpn")
		rrClient := r.Overlay.RouteReflectorClient != nil && *r.Overlay.RouteReflectorClient
		for _, n := range r.Overlay.Neighbors {
			lines = append(lines, indent+indent+"neighbor "+n.Address+" activate")
			if n.Encapsulation != nil {
				lines = append(lines, indent+indent+"neighbor "+n.Address+" encapsulation "+*n.Encapsulation)
			}
			if rrClient {
				lines = append(lines, indent+indent+"neighbor "+n.Address+" route-reflector-client")
			}
		}
	}

	return lines
}
