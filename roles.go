package signup

import "strings"

// UserRole is the app user's role within a client. The session only
// carries it; enforcement belongs to the consuming application.
type UserRole = string

const (
	// RoleMember is a regular client member
	RoleMember UserRole = "member"
	// RoleAdmin manages a client
	RoleAdmin UserRole = "admin"
	// RoleOwner created the client
	RoleOwner UserRole = "owner"
)

var roleHierarchy = map[UserRole]int{
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// IsValidRole checks if the role is one of the predefined roles
func IsValidRole(role string) bool {
	_, ok := roleHierarchy[role]
	return ok
}

// RoleAtLeast reports whether role meets minRole. Unknown roles never do.
func RoleAtLeast(role, minRole string) bool {
	current, ok := roleHierarchy[role]
	if !ok {
		return false
	}
	min, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}
	return current >= min
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{RoleMember, RoleAdmin, RoleOwner}
}

// ParseRole normalizes a stored role. Empty defaults to RoleMember.
func ParseRole(role string) (UserRole, bool) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return RoleMember, true
	}
	return role, IsValidRole(role)
}
