package domain

import (
	"slices"

	"github.com/aussiebroadwan/promogate/pkg/jwtx"
)

// RoleAdmin grants access to the admin dashboard.
const RoleAdmin = "admin"

// Role is the set of role names attached to the identity. The provider emits
// it as a single string, a list, or null; all three decode into Role.
type Role []string

func (r *Role) UnmarshalJSON(data []byte) error {
	var roles jwtx.Roles
	if err := roles.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = Role(roles)
	return nil
}

// Has reports whether name is one of the roles.
func (r Role) Has(name string) bool {
	return slices.Contains(r, name)
}

// IsAdmin is shorthand for Has(RoleAdmin).
func (r Role) IsAdmin() bool {
	return r.Has(RoleAdmin)
}
