package identity

// Role is the closed set of platform roles. Keep it a defined type so access
// decisions are exhaustive switches instead of free-form string comparisons.
type Role string

const (
	// RoleReader can browse published content and comment
	RoleReader Role = "reader"
	// RoleAuthor can additionally create and publish content
	RoleAuthor Role = "author"
	// RoleAdmin can moderate content and manage accounts
	RoleAdmin Role = "admin"
)

// SelfAssignableRoles are the roles a user may pick at registration. Admin is
// never self-assignable; it is granted by an existing admin via ChangeRole.
func SelfAssignableRoles() []Role {
	return []Role{RoleReader, RoleAuthor}
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleReader, RoleAuthor, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsSelfAssignable reports whether the role may be chosen at registration
func (r Role) IsSelfAssignable() bool {
	switch r {
	case RoleReader, RoleAuthor:
		return true
	default:
		return false
	}
}

// CanComment checks if this role can comment on published content
func (r Role) CanComment() bool {
	switch r {
	case RoleReader, RoleAuthor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanPublish checks if this role can create and publish content
func (r Role) CanPublish() bool {
	switch r {
	case RoleAuthor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanModerate checks if this role can moderate content and manage accounts
func (r Role) CanModerate() bool {
	switch r {
	case RoleAdmin:
		return true
	default:
		return false
	}
}

// rank maps the role onto the hierarchy used by IsAtLeast. Unknown roles rank
// below every valid role.
func (r Role) rank() int {
	switch r {
	case RoleReader:
		return 1
	case RoleAuthor:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	if !r.IsValid() || !minRole.IsValid() {
		return false
	}
	return r.rank() >= minRole.rank()
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{RoleReader, RoleAuthor, RoleAdmin}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// DefaultRole is applied when registration omits the role field
const DefaultRole = RoleReader
