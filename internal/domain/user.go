// Package domain contains the entities shared by the leavedesk services.
package domain

import "time"

// Role is a permission tier on a user.
type Role string

// Available roles.
const (
	RoleMember  Role = "MEMBER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleMember, RoleManager, RoleAdmin}

// IsValid reports whether r is one of the enumerated roles.
func (r Role) IsValid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is a directory entry owned by the platform.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ManagerMemberRelation pairs a manager with one of their team members.
type ManagerMemberRelation struct {
	ID        string    `json:"id"`
	ManagerID string    `json:"manager_id"`
	MemberID  string    `json:"member_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}
