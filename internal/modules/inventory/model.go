package inventory

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies an inventory mutation in the audit log.
type ChangeType string

const (
	ChangeTransferPickup    ChangeType = "transfer_pickup"
	ChangeTransferReception ChangeType = "transfer_reception"
	ChangeReversal          ChangeType = "reversal"
)

// Product is one reference code carried at one location. The same reference
// code exists as separate product rows per location.
type Product struct {
	ID            uuid.UUID `json:"id"`
	ReferenceCode string    `json:"reference_code"`
	Description   string    `json:"description"`
	Brand         string    `json:"brand"`
	Model         string    `json:"model"`
	Color         string    `json:"color,omitempty"`
	LocationID    uuid.UUID `json:"location_id"`
	UnitPrice     float64   `json:"unit_price"`
	BoxPrice      float64   `json:"box_price"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Variant is the stock-bearing unit: one (reference code, size, location)
// triple with its own quantity. All concurrent mutation is serialized per
// variant row.
type Variant struct {
	ID                 uuid.UUID `json:"id"`
	ProductID          uuid.UUID `json:"product_id"`
	ReferenceCode      string    `json:"reference_code"`
	Size               string    `json:"size"`
	LocationID         uuid.UUID `json:"location_id"`
	Quantity           int       `json:"quantity"`
	QuantityExhibition int       `json:"quantity_exhibition"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// InventoryChange is the append-only audit record written on every stock
// mutation. Reversals are driven off these records, never off the live rows.
type InventoryChange struct {
	ID             uuid.UUID  `json:"id"`
	VariantID      uuid.UUID  `json:"variant_id"`
	ReferenceCode  string     `json:"reference_code"`
	Size           string     `json:"size"`
	LocationID     uuid.UUID  `json:"location_id"`
	ChangeType     ChangeType `json:"change_type"`
	QuantityBefore int        `json:"quantity_before"`
	QuantityAfter  int        `json:"quantity_after"`
	// ReferenceID links a pickup/reception to its transfer, and a reversal
	// to the change it undoes.
	ReferenceID *uuid.UUID `json:"reference_id,omitempty"`
	ActorID     uuid.UUID  `json:"actor_id"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MovementParams identifies the variant and quantity for a ledger mutation.
type MovementParams struct {
	ReferenceCode string
	Size          string
	LocationID    uuid.UUID
	Quantity      int
	ActorID       uuid.UUID
	ReferenceID   *uuid.UUID
	Notes         string
}

// ProductDescriptor carries the descriptive fields copied from the source
// product when a reception creates the product at the destination.
type ProductDescriptor struct {
	ReferenceCode string  `json:"reference_code"`
	Description   string  `json:"description"`
	Brand         string  `json:"brand"`
	Model         string  `json:"model"`
	Color         string  `json:"color,omitempty"`
	UnitPrice     float64 `json:"unit_price"`
	BoxPrice      float64 `json:"box_price"`
}

// Availability is the stock snapshot returned by availability checks.
type Availability struct {
	Available     bool      `json:"available"`
	PhysicalStock int       `json:"physical_stock"`
	ReferenceCode string    `json:"reference_code"`
	Size          string    `json:"size"`
	LocationID    uuid.UUID `json:"location_id"`
}
