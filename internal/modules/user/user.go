package user

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies what a user is allowed to do in the transfer workflow.
type Role string

const (
	RoleSeller          Role = "SELLER"
	RoleWarehouseKeeper Role = "WAREHOUSE_KEEPER"
	RoleCourier         Role = "COURIER"
	RoleAdmin           Role = "ADMIN"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSeller, RoleWarehouseKeeper, RoleCourier, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Role         Role       `json:"role"`
	LocationID   *uuid.UUID `json:"location_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LocationAssignment grants a warehouse keeper responsibility for a location.
// A keeper may manage several locations; pending transfer requests are scoped
// to this set.
type LocationAssignment struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	LocationID uuid.UUID `json:"location_id"`
	IsActive   bool      `json:"is_active"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Actor is the acting user attached to every service operation. It carries
// only what authorization checks need: identity, role, home location.
type Actor struct {
	ID         uuid.UUID
	Role       Role
	LocationID uuid.UUID
}
