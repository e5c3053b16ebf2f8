package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

type variantKey struct {
	ref  string
	size string
	loc  uuid.UUID
}

// MemoryLedger is a mutex-guarded in-memory Ledger used by tests and local
// runs without a database. It preserves the atomicity semantics of the
// PostgreSQL ledger: the stock guard and the write happen under one lock.
type MemoryLedger struct {
	mu       sync.Mutex
	variants map[variantKey]*Variant
	products map[variantKey]ProductDescriptor // keyed with size ""
	changes  map[uuid.UUID]*InventoryChange
	order    []uuid.UUID
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		variants: make(map[variantKey]*Variant),
		products: make(map[variantKey]ProductDescriptor),
		changes:  make(map[uuid.UUID]*InventoryChange),
	}
}

// Seed registers a product and variant with an initial quantity.
func (l *MemoryLedger) Seed(desc ProductDescriptor, size string, locationID uuid.UUID, quantity int) *Variant {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.products[variantKey{ref: desc.ReferenceCode, loc: locationID}] = desc
	v := &Variant{
		ID:            uuid.New(),
		ProductID:     uuid.New(),
		ReferenceCode: desc.ReferenceCode,
		Size:          size,
		LocationID:    locationID,
		Quantity:      quantity,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	l.variants[variantKey{ref: desc.ReferenceCode, size: size, loc: locationID}] = v
	return v
}

func (l *MemoryLedger) GetVariant(ctx context.Context, referenceCode, size string, locationID uuid.UUID) (*Variant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.variants[variantKey{ref: referenceCode, size: size, loc: locationID}]
	if !ok {
		return nil, apperrors.NewNotFound("variant", fmt.Sprintf("%s/%s", referenceCode, size))
	}
	copied := *v
	return &copied, nil
}

func (l *MemoryLedger) GetDescriptor(ctx context.Context, referenceCode string, locationID uuid.UUID) (ProductDescriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.products[variantKey{ref: referenceCode, loc: locationID}]
	if !ok {
		return ProductDescriptor{}, apperrors.NewNotFound("product", referenceCode)
	}
	return d, nil
}

func (l *MemoryLedger) Decrement(ctx context.Context, p MovementParams) (*InventoryChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.variants[variantKey{ref: p.ReferenceCode, size: p.Size, loc: p.LocationID}]
	if !ok {
		return nil, apperrors.NewNotFound("variant", fmt.Sprintf("%s/%s", p.ReferenceCode, p.Size))
	}
	if v.Quantity < p.Quantity {
		return nil, apperrors.NewInsufficientStock(v.Quantity, p.Quantity)
	}

	before := v.Quantity
	v.Quantity -= p.Quantity
	v.UpdatedAt = time.Now().UTC()

	return l.appendChange(v, ChangeTransferPickup, before, v.Quantity, p), nil
}

func (l *MemoryLedger) IncrementOrCreate(ctx context.Context, p MovementParams, desc ProductDescriptor) (*InventoryChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := variantKey{ref: p.ReferenceCode, size: p.Size, loc: p.LocationID}
	v, ok := l.variants[key]
	before := 0
	if ok {
		before = v.Quantity
		v.Quantity += p.Quantity
		v.UpdatedAt = time.Now().UTC()
	} else {
		prodKey := variantKey{ref: p.ReferenceCode, loc: p.LocationID}
		if _, exists := l.products[prodKey]; !exists {
			l.products[prodKey] = desc
		}
		v = &Variant{
			ID:            uuid.New(),
			ProductID:     uuid.New(),
			ReferenceCode: p.ReferenceCode,
			Size:          p.Size,
			LocationID:    p.LocationID,
			Quantity:      p.Quantity,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
		}
		l.variants[key] = v
	}

	return l.appendChange(v, ChangeTransferReception, before, v.Quantity, p), nil
}

func (l *MemoryLedger) Reverse(ctx context.Context, originalChangeID, actorID uuid.UUID, reason string) (*InventoryChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	original, ok := l.changes[originalChangeID]
	if !ok {
		return nil, apperrors.NewNotFound("inventory change", originalChangeID.String())
	}
	for _, id := range l.order {
		c := l.changes[id]
		if c.ChangeType == ChangeReversal && c.ReferenceID != nil && *c.ReferenceID == originalChangeID {
			return nil, apperrors.NewValidationError("change has already been reversed", "original_change_id")
		}
	}

	var v *Variant
	for _, candidate := range l.variants {
		if candidate.ID == original.VariantID {
			v = candidate
			break
		}
	}
	if v == nil {
		return nil, apperrors.NewNotFound("variant", original.VariantID.String())
	}

	delta := original.QuantityBefore - original.QuantityAfter
	if v.Quantity+delta < 0 {
		return nil, apperrors.NewInventoryUpdateFailed("reversal",
			fmt.Errorf("reversal would drive variant %s negative", v.ID))
	}

	before := v.Quantity
	v.Quantity += delta
	v.UpdatedAt = time.Now().UTC()

	refID := original.ID
	return l.appendChange(v, ChangeReversal, before, v.Quantity, MovementParams{
		ReferenceCode: original.ReferenceCode,
		Size:          original.Size,
		LocationID:    original.LocationID,
		ActorID:       actorID,
		ReferenceID:   &refID,
		Notes:         reason,
	}), nil
}

func (l *MemoryLedger) GetChange(ctx context.Context, id uuid.UUID) (*InventoryChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.changes[id]
	if !ok {
		return nil, apperrors.NewNotFound("inventory change", id.String())
	}
	copied := *c
	return &copied, nil
}

func (l *MemoryLedger) ListChanges(ctx context.Context, referenceCode, size string, locationID uuid.UUID) ([]*InventoryChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var changes []*InventoryChange
	// Newest first, matching the PostgreSQL ledger.
	for i := len(l.order) - 1; i >= 0; i-- {
		c := l.changes[l.order[i]]
		if c.ReferenceCode == referenceCode && c.Size == size && c.LocationID == locationID {
			copied := *c
			changes = append(changes, &copied)
		}
	}
	return changes, nil
}

// appendChange must be called with the lock held.
func (l *MemoryLedger) appendChange(v *Variant, t ChangeType, before, after int, p MovementParams) *InventoryChange {
	c := &InventoryChange{
		ID:             uuid.New(),
		VariantID:      v.ID,
		ReferenceCode:  v.ReferenceCode,
		Size:           v.Size,
		LocationID:     v.LocationID,
		ChangeType:     t,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceID:    p.ReferenceID,
		ActorID:        p.ActorID,
		Notes:          p.Notes,
		CreatedAt:      time.Now().UTC(),
	}
	l.changes[c.ID] = c
	l.order = append(l.order, c.ID)
	return c
}
