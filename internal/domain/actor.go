package domain

import "errors"

// ErrForbidden is returned when an actor's role does not permit an operation.
var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
