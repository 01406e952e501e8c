package auth

import "strings"

type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// NormalizeRole maps a stored or claimed role onto a known Role. Unknown values
// yield the empty role, which no permission check accepts.
func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleStudent):
		return RoleStudent
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleSuperAdmin):
		return RoleSuperAdmin
	default:
		return ""
	}
}

func (r Role) Valid() bool {
	return NormalizeRole(string(r)) != ""
}

func HasRole(role string, allowed ...Role) bool {
	if len(allowed) == 0 {
		return false
	}
	current := NormalizeRole(role)
	if current == "" {
		return false
	}
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}

func IsSuperAdmin(role string) bool {
	return NormalizeRole(role) == RoleSuperAdmin
}
