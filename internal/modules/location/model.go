package location

import (
	"time"

	"github.com/google/uuid"
)

// Type distinguishes sales floors from warehouses.
type Type string

const (
	TypeStore     Type = "LOCAL"
	TypeWarehouse Type = "BODEGA"
)

// Location is a physical place holding stock: a store floor or a warehouse.
type Location struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      Type      `json:"type"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateLocationRequest holds data for registering a location.
type CreateLocationRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}
