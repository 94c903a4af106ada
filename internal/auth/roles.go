package auth

// Admin roles, lowest privilege first.
const (
	RoleViewer     = "viewer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// AllAdminRoles may inspect ad sessions.
func AllAdminRoles() []string {
	return []string{RoleViewer, RoleAdmin, RoleSuperAdmin}
}

// WriteRoles may act on a user's sessions, e.g. retry a stuck persistence.
func WriteRoles() []string {
	return []string{RoleAdmin, RoleSuperAdmin}
}

// HasRole reports whether role is one of roles.
func HasRole(role string, roles ...string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
