package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines user data storage.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// AssignLocation makes a user responsible for a location. Re-assigning
	// an existing pair reactivates it.
	AssignLocation(ctx context.Context, a *LocationAssignment) error

	// AssignedLocationIDs returns the active location set for a user.
	AssignedLocationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}
