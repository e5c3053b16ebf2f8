package location

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines location data storage.
type Repository interface {
	CreateLocation(ctx context.Context, l *Location) error
	GetLocationByID(ctx context.Context, id uuid.UUID) (*Location, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]*Location, error)
}
