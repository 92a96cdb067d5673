package shared

import "github.com/google/uuid"

// Role distinguishes shoppers from back-office staff
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor is the authenticated principal on whose behalf an operation runs.
// It is passed explicitly into every use case.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name,omitempty"`
	Email  string    `json:"email,omitempty"`
	Role   Role      `json:"role"`
}

// SystemActor is used for background jobs
var SystemActor = &Actor{Role: RoleSystem, Name: "system"}

// IsAdmin reports whether the actor may perform back-office operations
func (a *Actor) IsAdmin() bool {
	return a != nil && (a.Role == RoleAdmin || a.Role == RoleSystem)
}

// Owns reports whether the actor is the given user
func (a *Actor) Owns(userID uuid.UUID) bool {
	return a != nil && a.UserID != uuid.Nil && a.UserID == userID
}

// RequireUser returns ErrUnauthenticated unless a user is present
func RequireUser(a *Actor) error {
	if a == nil || a.UserID == uuid.Nil {
		return ErrUnauthenticated
	}
	return nil
}

// RequireAdmin returns ErrUnauthenticated or ErrForbidden unless the actor is admin
func RequireAdmin(a *Actor) error {
	if a == nil {
		return ErrUnauthenticated
	}
	if !a.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
