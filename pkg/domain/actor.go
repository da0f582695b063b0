package domain

import dErrors "bonifica/pkg/domain-errors"

// Role classifies what an actor is allowed to see of the organization
// hierarchy. Authentication happens upstream; the engine only ever receives a
// resolved Actor.
type Role string

const (
	// RolePlatformAdmin may act on every organization.
	RolePlatformAdmin Role = "platform_admin"
	// RoleOrgManager may act on its home organization and, when the home
	// organization is a reseller, on the reseller's clients.
	RoleOrgManager Role = "org_manager"
	// RoleParticipant never mutates compliance records; its scope is empty.
	RoleParticipant Role = "participant"
)

var validRoles = map[Role]bool{
	RolePlatformAdmin: true,
	RoleOrgManager:    true,
	RoleParticipant:   true,
}

// IsValid checks the role against the supported set.
func (r Role) IsValid() bool { return validRoles[r] }

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// Actor is a resolved caller identity: who is acting and from which home
// organization. Platform admins have no home organization.
type Actor struct {
	Role  Role
	OrgID OrgID
}

// IsAdmin reports whether the actor has unrestricted scope.
func (a Actor) IsAdmin() bool { return a.Role == RolePlatformAdmin }
