package fabric

import "strings"

// Role is a device's fabric role. The set is open: unrecognized roles are
// carried verbatim and treated as "other" wherever behavior branches on
// role (banner selection, role-specific validation).
type Role string

const (
	// RoleSpine is a fabric core switch: underlay transit and overlay
	// route reflection.
	RoleSpine Role = "spine"

	// RoleLeaf is a host-attachment switch: VTEP, VLANs, access ports.
	RoleLeaf Role = "leaf"

	// RoleBorder connects the fabric to external networks.
	RoleBorder Role = "border"
)

// ParseRole normalizes a role string. Unknown values are preserved, not
// rejected.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether the role is one of the enumerated fabric roles.
func (r Role) Known() bool {
	switch r {
	case RoleSpine, RoleLeaf, RoleBorder:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
