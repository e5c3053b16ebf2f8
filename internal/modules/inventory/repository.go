package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Ledger is the single mutation path for stock quantities. Every decrement,
// increment, and reversal in the system funnels through one of these
// operations; each mutation appends an InventoryChange in the same unit of
// work.
type Ledger interface {
	// GetVariant returns the variant for a (reference code, size, location)
	// triple, or NotFound.
	GetVariant(ctx context.Context, referenceCode, size string, locationID uuid.UUID) (*Variant, error)

	// GetDescriptor returns the descriptive product fields at a location,
	// used to create the product at a destination on reception.
	GetDescriptor(ctx context.Context, referenceCode string, locationID uuid.UUID) (ProductDescriptor, error)

	// Decrement atomically subtracts p.Quantity from the variant, failing
	// closed with InsufficientStock if the remaining quantity would go
	// negative. Returns the appended change record.
	Decrement(ctx context.Context, p MovementParams) (*InventoryChange, error)

	// IncrementOrCreate atomically adds p.Quantity to the variant, creating
	// the product and variant at the location from desc when absent.
	IncrementOrCreate(ctx context.Context, p MovementParams, desc ProductDescriptor) (*InventoryChange, error)

	// Reverse undoes a prior change: it applies the inverse delta to the
	// same variant and appends a reversal record referencing the original.
	// A change may be reversed at most once.
	Reverse(ctx context.Context, originalChangeID, actorID uuid.UUID, reason string) (*InventoryChange, error)

	// GetChange returns one audit record by id.
	GetChange(ctx context.Context, id uuid.UUID) (*InventoryChange, error)

	// ListChanges returns the movement history for a variant triple, newest
	// first.
	ListChanges(ctx context.Context, referenceCode, size string, locationID uuid.UUID) ([]*InventoryChange, error)
}
