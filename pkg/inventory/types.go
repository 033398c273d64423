package inventory

import (
	"fmt"
	"strings"

	"github.com/openloom/openloom/pkg/fabric"
	"github.com/openloom/openloom/pkg/resolver"
)

// Device is one inventory entry: the durable description of a switch,
// independent of any context values.
type Device struct {
	Hostname    string            `json:"hostname" yaml:"hostname" validate:"required,hostname_rfc1123"`
	Role        string            `json:"role" yaml:"role" validate:"required"`
	Site        string            `json:"site,omitempty" yaml:"site,omitempty"`
	Platform    string            `json:"platform,omitempty" yaml:"platform,omitempty"`
	MgmtAddress string            `json:"mgmt_address,omitempty" yaml:"mgmt_address,omitempty" validate:"omitempty,ip|cidr"`
	Groups      []string          `json:"groups,omitempty" yaml:"groups,omitempty" validate:"dive,required"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Identity returns the immutable snapshot embedded into resolved records.
func (d Device) Identity() fabric.DeviceIdentity {
	return fabric.DeviceIdentity{
		Hostname:    d.Hostname,
		Role:        fabric.ParseRole(d.Role),
		Site:        d.Site,
		Platform:    d.Platform,
		MgmtAddress: d.MgmtAddress,
	}
}

// Attribute looks up a named device attribute or label for selector
// matching. Attributes shadow labels of the same name.
func (d Device) Attribute(key string) (string, bool) {
	switch key {
	case "hostname":
		return d.Hostname, true
	case "role":
		return fabric.ParseRole(d.Role).String(), true
	case "site":
		return d.Site, true
	case "platform":
		return d.Platform, true
	}
	v, ok := d.Labels[key]
	return v, ok
}

// InGroup reports whether the device belongs to the named group.
func (d Device) InGroup(group string) bool {
	for _, g := range d.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Scope restricts a context blob to part of the fleet. Which axis is
// consulted depends on the blob's tier.
type Scope struct {
	Devices []string `json:"devices,omitempty" yaml:"devices,omitempty"`
	Sites   []string `json:"sites,omitempty" yaml:"sites,omitempty"`
	Roles   []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Groups  []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// ContextBlob is one declared context source. The override tier never
// appears in files; it is reserved for run-time values, so the tier
// enumeration here stops at device.
type ContextBlob struct {
	Name    string         `json:"name" yaml:"name" validate:"required"`
	Tier    string         `json:"tier" yaml:"tier" validate:"required,oneof=device site role group"`
	Weight  int            `json:"weight,omitempty" yaml:"weight,omitempty"`
	Scope   Scope          `json:"scope,omitempty" yaml:"scope,omitempty"`
	Payload map[string]any `json:"payload" yaml:"payload" validate:"required"`

	// Source names the file or derive script the blob came from. Set by
	// the loader, carried into provenance.
	Source string `json:"-" yaml:"-"`
}

// check enforces tier/scope coherence beyond struct tags: a blob scoped
// narrower than the whole fabric must say what it applies to.
func (b *ContextBlob) check() error {
	tier, err := resolver.ParseTier(b.Tier)
	if err != nil {
		return fmt.Errorf("blob %s: %w", b.Name, err)
	}
	switch tier {
	case resolver.TierDevice:
		if len(b.Scope.Devices) == 0 {
			return fmt.Errorf("blob %s: device tier requires scope.devices", b.Name)
		}
	case resolver.TierSite:
		if len(b.Scope.Sites) == 0 {
			return fmt.Errorf("blob %s: site tier requires scope.sites", b.Name)
		}
	case resolver.TierRole:
		if len(b.Scope.Roles) == 0 {
			return fmt.Errorf("blob %s: role tier requires scope.roles", b.Name)
		}
	}
	return nil
}

// AppliesTo reports whether the blob is in scope for the device. A
// group-tier blob with an empty scope is a fabric-wide default.
func (b *ContextBlob) AppliesTo(d Device) bool {
	tier, err := resolver.ParseTier(b.Tier)
	if err != nil {
		return false
	}
	switch tier {
	case resolver.TierDevice:
		return containsFold(b.Scope.Devices, d.Hostname)
	case resolver.TierSite:
		return containsFold(b.Scope.Sites, d.Site)
	case resolver.TierRole:
		role := fabric.ParseRole(d.Role)
		for _, r := range b.Scope.Roles {
			if fabric.ParseRole(r) == role {
				return true
			}
		}
		return false
	case resolver.TierGroup:
		if len(b.Scope.Groups) == 0 {
			return true
		}
		for _, g := range b.Scope.Groups {
			if d.InGroup(g) {
				return true
			}
		}
		return false
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// Inventory is the loaded fleet plus its context blobs.
type Inventory struct {
	Devices []Device
	Blobs   []ContextBlob
}

// Device finds an inventory entry by hostname.
func (inv *Inventory) Device(hostname string) (Device, bool) {
	for _, d := range inv.Devices {
		if d.Hostname == hostname {
			return d, true
		}
	}
	return Device{}, false
}

// BlobsFor collects the applicable blobs for one device in resolver
// form. Applicability is settled here; the resolver only weighs tiers
// and weights.
func (inv *Inventory) BlobsFor(d Device) []resolver.Blob {
	var out []resolver.Blob
	for _, b := range inv.Blobs {
		if !b.AppliesTo(d) {
			continue
		}
		tier, err := resolver.ParseTier(b.Tier)
		if err != nil {
			continue
		}
		out = append(out, resolver.Blob{
			Source:  b.Source,
			Tier:    tier,
			Weight:  b.Weight,
			Payload: b.Payload,
		})
	}
	return out
}

// LoadError is a positioned failure in one inventory or context file.
type LoadError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *LoadError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
}

// LoadErrors aggregates positioned failures from one load pass.
type LoadErrors []*LoadError

func (e LoadErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	parts := make([]string, len(e))
	for i, le := range e {
		parts[i] = le.Error()
	}
	return fmt.Sprintf("%d load errors: %s", len(e), strings.Join(parts, "; "))
}
