package domain

import "strings"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleTenant Role = "tenant"
)

// Administrative roles see every tenant-scoped record.
func (r Role) Administrative() bool { return r == RoleAdmin }

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTenant:
		return RoleTenant, true
	}
	return "", false
}

// Principal is the resolved caller of a request. Tenant is set only for
// tenant principals.
type Principal struct {
	Role   Role
	Tenant *Tenant
}
