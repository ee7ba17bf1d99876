package entity

import "time"

// Role groups permissions and is the unit approvers are designated by
type Role struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Permissions []string  `json:"permissions" yaml:"permissions"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// HasPermission reports whether the role grants permission
func (r *Role) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// UserRole assigns a role to a user
type UserRole struct {
	UserID    string    `json:"user_id" yaml:"user_id"`
	RoleID    string    `json:"role_id" yaml:"role_id"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}
