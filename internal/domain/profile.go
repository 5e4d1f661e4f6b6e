package domain

import "time"

// Roles a profile may hold.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// Profile carries the user-facing identity and role of an account.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	Department string    `json:"department,omitempty"`
	AvatarPath string    `json:"avatar_path,omitempty"`
	IsDemo     bool      `json:"is_demo"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProfileFilter narrows profile listings.
type ProfileFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

// CanManageResources reports whether role may mutate resources.
func CanManageResources(role string) bool {
	return role == RoleAdmin || role == RoleManager
}
