package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tustockya/tustockya-backend/internal/modules/inventory"
)

// ListFilter narrows the read queries. The zero value matches everything.
type ListFilter struct {
	Statuses []Status
	From     *time.Time
	To       *time.Time
}

// Repository persists transfer requests and their incidents. Writes that
// race (courier claim) or that pair a status change with an inventory
// mutation (hand-off, reception) are single atomic operations here, not
// composed read-then-write calls in the service.
type Repository interface {
	Create(ctx context.Context, t *TransferRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*TransferRequest, error)

	// UpdateStatus performs a guarded transition: the row is updated only if
	// its status still equals expected. Returns InvalidTransition when the
	// guard fails. set carries the transition's side fields (actor refs,
	// timestamps, notes).
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next Status, set StatusUpdate) (*TransferRequest, error)

	// Claim atomically assigns a courier: status must still be ACCEPTED and
	// courier_id unset. A losing concurrent caller gets AlreadyClaimed.
	Claim(ctx context.Context, id uuid.UUID, courierID uuid.UUID, estimatedMinutes *int, notes string) (*TransferRequest, error)

	// RegisterHandOff decrements the source variant and stamps picked_up_at
	// in one unit of work. The transfer must be COURIER_ASSIGNED with
	// picked_up_at unset; the decrement failing aborts the whole operation.
	RegisterHandOff(ctx context.Context, id uuid.UUID, keeperID uuid.UUID, notes string, decrement inventory.MovementParams) (*TransferRequest, *inventory.InventoryChange, error)

	// ConfirmReception increments the destination variant (creating it from
	// desc when absent) and moves DELIVERED -> COMPLETED in one unit of
	// work. The increment failing aborts the whole operation.
	ConfirmReception(ctx context.Context, id uuid.UUID, set StatusUpdate, increment inventory.MovementParams, desc inventory.ProductDescriptor) (*TransferRequest, *inventory.InventoryChange, error)

	// Queue and history projections. All apply the priority ordering:
	// CLIENT_PRESENT before RESTOCK, then oldest relevant timestamp first.
	PendingForWarehouse(ctx context.Context, locationIDs []uuid.UUID) ([]*TransferRequest, error)
	AcceptedForKeeper(ctx context.Context, keeperID uuid.UUID) ([]*TransferRequest, error)
	AvailableForCourier(ctx context.Context, courierID uuid.UUID) ([]*TransferRequest, error)
	HistoryForCourier(ctx context.Context, courierID uuid.UUID, filter ListFilter) ([]*TransferRequest, error)
	ByRequester(ctx context.Context, requesterID uuid.UUID, filter ListFilter) ([]*TransferRequest, error)
	PendingReceptions(ctx context.Context, requesterID uuid.UUID) ([]*TransferRequest, error)
	ListByStatus(ctx context.Context, statuses []Status) ([]*TransferRequest, error)

	CreateIncident(ctx context.Context, incident *TransportIncident) error
	ListIncidents(ctx context.Context, transferID uuid.UUID) ([]*TransportIncident, error)
}

// StatusUpdate carries the side fields written alongside a status change.
// Nil pointers leave the column untouched.
type StatusUpdate struct {
	WarehouseKeeperID    *uuid.UUID
	AcceptedAt           *time.Time
	PickedUpAt           *time.Time
	DeliveredAt          *time.Time
	ConfirmedReceptionAt *time.Time
	CancelledAt          *time.Time
	ReceivedQuantity     *int
	WarehouseNotes       *string
	CourierNotes         *string
	ReceptionNotes       *string
	CancellationReason   *string
	HandOffChangeID      *uuid.UUID
}
