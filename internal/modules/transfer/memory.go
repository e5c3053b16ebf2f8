package transfer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tustockya/tustockya-backend/internal/modules/inventory"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// MemoryRepository is a mutex-guarded in-memory Repository used by tests. It
// keeps the compare-and-set semantics of the PostgreSQL repository: the claim
// guard, the picked_up_at guard, and the status guard are all evaluated under
// one lock.
type MemoryRepository struct {
	mu        sync.Mutex
	ledger    *inventory.MemoryLedger
	transfers map[uuid.UUID]*TransferRequest
	incidents map[uuid.UUID][]*TransportIncident
}

// NewMemoryRepository creates an in-memory repository backed by the given
// in-memory ledger.
func NewMemoryRepository(ledger *inventory.MemoryLedger) *MemoryRepository {
	return &MemoryRepository{
		ledger:    ledger,
		transfers: make(map[uuid.UUID]*TransferRequest),
		incidents: make(map[uuid.UUID][]*TransportIncident),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, t *TransferRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.RequestedAt = now
	copied := *t
	r.transfers[t.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*TransferRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *MemoryRepository) get(id uuid.UUID) (*TransferRequest, error) {
	t, ok := r.transfers[id]
	if !ok {
		return nil, apperrors.NewNotFound("transfer", id.String())
	}
	copied := *t
	return &copied, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next Status, set StatusUpdate) (*TransferRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateStatus(id, expected, next, set)
}

func (r *MemoryRepository) updateStatus(id uuid.UUID, expected, next Status, set StatusUpdate) (*TransferRequest, error) {
	t, ok := r.transfers[id]
	if !ok {
		return nil, apperrors.NewNotFound("transfer", id.String())
	}
	if t.Status != expected {
		return nil, apperrors.NewInvalidTransition(string(t.Status), string(next))
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	applyUpdate(t, set)
	copied := *t
	return &copied, nil
}

func applyUpdate(t *TransferRequest, set StatusUpdate) {
	if set.WarehouseKeeperID != nil {
		t.WarehouseKeeperID = set.WarehouseKeeperID
	}
	if set.AcceptedAt != nil {
		t.AcceptedAt = set.AcceptedAt
	}
	if set.PickedUpAt != nil {
		t.PickedUpAt = set.PickedUpAt
	}
	if set.DeliveredAt != nil {
		t.DeliveredAt = set.DeliveredAt
	}
	if set.ConfirmedReceptionAt != nil {
		t.ConfirmedReceptionAt = set.ConfirmedReceptionAt
	}
	if set.CancelledAt != nil {
		t.CancelledAt = set.CancelledAt
	}
	if set.ReceivedQuantity != nil {
		t.ReceivedQuantity = set.ReceivedQuantity
	}
	if set.WarehouseNotes != nil {
		t.WarehouseNotes = *set.WarehouseNotes
	}
	if set.CourierNotes != nil {
		t.CourierNotes = *set.CourierNotes
	}
	if set.ReceptionNotes != nil {
		t.ReceptionNotes = *set.ReceptionNotes
	}
	if set.CancellationReason != nil {
		t.CancellationReason = *set.CancellationReason
	}
	if set.HandOffChangeID != nil {
		t.HandOffChangeID = set.HandOffChangeID
	}
}

func (r *MemoryRepository) Claim(ctx context.Context, id uuid.UUID, courierID uuid.UUID, estimatedMinutes *int, notes string) (*TransferRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[id]
	if !ok {
		return nil, apperrors.NewNotFound("transfer", id.String())
	}
	if t.Status != StatusAccepted || t.CourierID != nil {
		if t.CourierID != nil {
			return nil, apperrors.NewAlreadyClaimed(id.String())
		}
		return nil, apperrors.NewInvalidTransition(string(t.Status), string(StatusCourierAssigned))
	}
	now := time.Now().UTC()
	t.Status = StatusCourierAssigned
	t.CourierID = &courierID
	t.CourierAcceptedAt = &now
	t.EstimatedPickupMinutes = estimatedMinutes
	t.CourierNotes = notes
	t.UpdatedAt = now
	copied := *t
	return &copied, nil
}

func (r *MemoryRepository) RegisterHandOff(ctx context.Context, id uuid.UUID, keeperID uuid.UUID, notes string, decrement inventory.MovementParams) (*TransferRequest, *inventory.InventoryChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[id]
	if !ok {
		return nil, nil, apperrors.NewNotFound("transfer", id.String())
	}
	if t.Status != StatusCourierAssigned {
		return nil, nil, apperrors.NewInvalidTransition(string(t.Status), string(StatusCourierAssigned))
	}
	if t.PickedUpAt != nil {
		return nil, nil, apperrors.NewValidationError("goods already handed off for this transfer", "transfer_id")
	}
	if t.WarehouseKeeperID == nil || *t.WarehouseKeeperID != keeperID {
		return nil, nil, apperrors.NewForbidden("only the accepting warehouse keeper may hand off")
	}

	change, err := r.ledger.Decrement(ctx, decrement)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	t.PickedUpAt = &now
	t.WarehouseNotes = notes
	t.HandOffChangeID = &change.ID
	t.UpdatedAt = now
	copied := *t
	return &copied, change, nil
}

func (r *MemoryRepository) ConfirmReception(ctx context.Context, id uuid.UUID, set StatusUpdate, increment inventory.MovementParams, desc inventory.ProductDescriptor) (*TransferRequest, *inventory.InventoryChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[id]
	if !ok {
		return nil, nil, apperrors.NewNotFound("transfer", id.String())
	}
	if t.Status != StatusDelivered {
		return nil, nil, apperrors.NewInvalidTransition(string(t.Status), string(StatusCompleted))
	}

	change, err := r.ledger.IncrementOrCreate(ctx, increment, desc)
	if err != nil {
		return nil, nil, err
	}

	t.Status = StatusCompleted
	t.UpdatedAt = time.Now().UTC()
	applyUpdate(t, set)
	copied := *t
	return &copied, change, nil
}

func (r *MemoryRepository) PendingForWarehouse(ctx context.Context, locationIDs []uuid.UUID) ([]*TransferRequest, error) {
	allowed := make(map[uuid.UUID]bool, len(locationIDs))
	for _, id := range locationIDs {
		allowed[id] = true
	}
	result := r.collect(func(t *TransferRequest) bool {
		return t.Status == StatusPending && allowed[t.SourceID]
	})
	sortByPriority(result, func(t *TransferRequest) time.Time { return t.RequestedAt })
	return result, nil
}

func (r *MemoryRepository) AcceptedForKeeper(ctx context.Context, keeperID uuid.UUID) ([]*TransferRequest, error) {
	active := map[Status]bool{StatusAccepted: true, StatusCourierAssigned: true, StatusInTransit: true}
	result := r.collect(func(t *TransferRequest) bool {
		return t.WarehouseKeeperID != nil && *t.WarehouseKeeperID == keeperID && active[t.Status]
	})
	sortByPriority(result, func(t *TransferRequest) time.Time {
		if t.AcceptedAt != nil {
			return *t.AcceptedAt
		}
		return t.RequestedAt
	})
	return result, nil
}

func (r *MemoryRepository) AvailableForCourier(ctx context.Context, courierID uuid.UUID) ([]*TransferRequest, error) {
	mine := map[Status]bool{StatusCourierAssigned: true, StatusInTransit: true}
	result := r.collect(func(t *TransferRequest) bool {
		if t.Status == StatusAccepted && t.CourierID == nil {
			return true
		}
		return t.CourierID != nil && *t.CourierID == courierID && mine[t.Status]
	})
	sortByPriority(result, func(t *TransferRequest) time.Time {
		if t.AcceptedAt != nil {
			return *t.AcceptedAt
		}
		return t.RequestedAt
	})
	return result, nil
}

func (r *MemoryRepository) HistoryForCourier(ctx context.Context, courierID uuid.UUID, filter ListFilter) ([]*TransferRequest, error) {
	result := r.collect(func(t *TransferRequest) bool {
		return t.CourierID != nil && *t.CourierID == courierID && matchesFilter(t, filter)
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) ByRequester(ctx context.Context, requesterID uuid.UUID, filter ListFilter) ([]*TransferRequest, error) {
	result := r.collect(func(t *TransferRequest) bool {
		return t.RequesterID == requesterID && matchesFilter(t, filter)
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	return result, nil
}

func (r *MemoryRepository) PendingReceptions(ctx context.Context, requesterID uuid.UUID) ([]*TransferRequest, error) {
	result := r.collect(func(t *TransferRequest) bool {
		return t.RequesterID == requesterID && t.Status == StatusDelivered
	})
	sort.Slice(result, func(i, j int) bool {
		return timeOrZero(result[i].DeliveredAt).Before(timeOrZero(result[j].DeliveredAt))
	})
	return result, nil
}

func (r *MemoryRepository) ListByStatus(ctx context.Context, statuses []Status) ([]*TransferRequest, error) {
	wanted := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	result := r.collect(func(t *TransferRequest) bool { return wanted[t.Status] })
	sortByPriority(result, func(t *TransferRequest) time.Time { return t.RequestedAt })
	return result, nil
}

func (r *MemoryRepository) CreateIncident(ctx context.Context, incident *TransportIncident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transfers[incident.TransferID]; !ok {
		return apperrors.NewNotFound("transfer", incident.TransferID.String())
	}
	incident.ReportedAt = time.Now().UTC()
	copied := *incident
	r.incidents[incident.TransferID] = append(r.incidents[incident.TransferID], &copied)
	return nil
}

func (r *MemoryRepository) ListIncidents(ctx context.Context, transferID uuid.UUID) ([]*TransportIncident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.incidents[transferID]
	result := make([]*TransportIncident, len(stored))
	for i, inc := range stored {
		copied := *inc
		result[i] = &copied
	}
	return result, nil
}

func (r *MemoryRepository) collect(match func(*TransferRequest) bool) []*TransferRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*TransferRequest
	for _, t := range r.transfers {
		if match(t) {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result
}

func matchesFilter(t *TransferRequest, filter ListFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.From != nil && t.RequestedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && t.RequestedAt.After(*filter.To) {
		return false
	}
	return true
}

func sortByPriority(transfers []*TransferRequest, key func(*TransferRequest) time.Time) {
	rank := func(p Purpose) int {
		if p == PurposeClientPresent {
			return 0
		}
		return 1
	}
	sort.SliceStable(transfers, func(i, j int) bool {
		ri, rj := rank(transfers[i].Purpose), rank(transfers[j].Purpose)
		if ri != rj {
			return ri < rj
		}
		return key(transfers[i]).Before(key(transfers[j]))
	})
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
