package schematic

import (
	"strings"

	"github.com/schemforge/schemforge/pkg/errors"
)

// Role is the electrical role of a pin. Roles form a closed set validated
// at parse time so that role-compatibility checks downstream never see an
// undefined tag.
type Role string

// Electrical roles.
const (
	RolePower   Role = "power"
	RoleGround  Role = "ground"
	RoleSignal  Role = "signal"
	RoleUnknown Role = "unknown"
)

// ParseRole converts a raw role tag into a Role.
// An empty tag maps to RoleUnknown. Unrecognized tags are an error.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return RoleUnknown, nil
	case RolePower:
		return RolePower, nil
	case RoleGround:
		return RoleGround, nil
	case RoleSignal:
		return RoleSignal, nil
	case RoleUnknown:
		return RoleUnknown, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidRole, "invalid pin role: %q", s)
	}
}

// Valid reports whether the role is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RolePower, RoleGround, RoleSignal, RoleUnknown:
		return true
	}
	return false
}

// ConflictsWith reports whether two roles may not share a net.
// Power and ground rails are the only hard conflict; signal and unknown
// pins are compatible with everything.
func (r Role) ConflictsWith(other Role) bool {
	return (r == RolePower && other == RoleGround) ||
		(r == RoleGround && other == RolePower)
}

// RoleForPinName guesses a role from a pin or net label.
// Recognizes the common power and ground rail spellings; everything else
// is a signal when named and unknown otherwise.
func RoleForPinName(name string) Role {
	switch up := strings.ToUpper(strings.TrimSpace(name)); {
	case up == "":
		return RoleUnknown
	case strings.HasPrefix(up, "VDD"), strings.HasPrefix(up, "VCC"),
		strings.HasPrefix(up, "V+"), up == "PWR", strings.HasPrefix(up, "+"):
		return RolePower
	case strings.HasPrefix(up, "GND"), strings.HasPrefix(up, "VSS"),
		up == "AGND", up == "DGND", up == "0V":
		return RoleGround
	default:
		return RoleSignal
	}
}
