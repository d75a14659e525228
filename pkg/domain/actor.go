package domain

import dErrors "propie/pkg/domain-errors"

// Role is the capacity in which an actor performs a transition.
type Role string

const (
	RoleBuyer     Role = "BUYER"
	RoleDeveloper Role = "DEVELOPER"
	RoleAdmin     Role = "ADMIN"
	RoleSystem    Role = "SYSTEM"
)

var validRoles = map[Role]bool{
	RoleBuyer:     true,
	RoleDeveloper: true,
	RoleAdmin:     true,
	RoleSystem:    true,
}

// ParseRole constructs a Role from external input. SYSTEM cannot be claimed by
// callers; it is reserved for the expiry sweep.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() || r == RoleSystem {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// Actor identifies who performed a transition.
type Actor struct {
	ID   UserID `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is attributed to transitions made by background sweeps.
var SystemActor = Actor{Role: RoleSystem}

func (a Actor) String() string {
	if a.Role == RoleSystem {
		return "system"
	}
	return string(a.Role) + ":" + a.ID.String()
}
