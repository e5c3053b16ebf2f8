package transfer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/events"
	"github.com/tustockya/tustockya-backend/internal/modules/inventory"
	"github.com/tustockya/tustockya-backend/internal/modules/user"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// LocationDirectory is the location lookup consumed by the transfer core.
type LocationDirectory interface {
	LocationExists(ctx context.Context, id uuid.UUID) error
}

// AssignmentDirectory resolves the location set a warehouse keeper works.
type AssignmentDirectory interface {
	AssignedLocationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Service defines the transfer workflow. Every operation takes the acting
// user explicitly; the role and actor checks live here, not in middleware.
type Service interface {
	Create(ctx context.Context, actor user.Actor, req CreateTransferRequest) (*TransferRequest, error)
	Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*TransferRequest, error)

	// Accept is the warehouse keeper's decision: accepted=true re-checks
	// source stock and moves PENDING -> ACCEPTED; accepted=false rejects the
	// request (PENDING -> CANCELLED).
	Accept(ctx context.Context, actor user.Actor, id uuid.UUID, req AcceptRequest) (*TransferRequest, error)

	// Claim races couriers for an accepted transfer; exactly one wins.
	Claim(ctx context.Context, actor user.Actor, id uuid.UUID, req ClaimRequest) (*TransferRequest, error)

	// RegisterHandOff records the physical hand-off to the assigned courier
	// and decrements source stock. It does not advance the status.
	RegisterHandOff(ctx context.Context, actor user.Actor, id uuid.UUID, req HandOffRequest) (*TransferRequest, error)

	// ConfirmPickup moves COURIER_ASSIGNED -> IN_TRANSIT once the hand-off
	// has happened.
	ConfirmPickup(ctx context.Context, actor user.Actor, id uuid.UUID, req PickupRequest) (*TransferRequest, error)

	// ConfirmDelivery reports the delivery outcome: DELIVERED on success,
	// DELIVERY_FAILED otherwise. A failed delivery leaves the earlier
	// decrement standing until an administrator reverses it.
	ConfirmDelivery(ctx context.Context, actor user.Actor, id uuid.UUID, req DeliveryRequest) (*TransferRequest, error)

	// ConfirmReception closes the loop: COMPLETED with a destination
	// increment when the goods are fine, RECEPTION_ISSUES otherwise.
	ConfirmReception(ctx context.Context, actor user.Actor, id uuid.UUID, req ReceptionRequest) (*TransferRequest, error)

	// Cancel is the requester's voluntary cancellation, legal while PENDING
	// or ACCEPTED. Administrators additionally close out DELIVERY_FAILED
	// transfers after reversal.
	Cancel(ctx context.Context, actor user.Actor, id uuid.UUID, req CancelRequest) (*TransferRequest, error)

	ReportIncident(ctx context.Context, actor user.Actor, id uuid.UUID, req IncidentRequest) (*TransportIncident, error)
	ListIncidents(ctx context.Context, actor user.Actor, id uuid.UUID) ([]*TransportIncident, error)

	// Queue and history projections.
	PendingForWarehouse(ctx context.Context, actor user.Actor) ([]*TransferRequest, error)
	AcceptedForKeeper(ctx context.Context, actor user.Actor) ([]*TransferRequest, error)
	AvailableForCourier(ctx context.Context, actor user.Actor) ([]*TransferRequest, error)
	HistoryForCourier(ctx context.Context, actor user.Actor, filter ListFilter) ([]*TransferRequest, error)
	MyTransfers(ctx context.Context, actor user.Actor, filter ListFilter) ([]*TransferRequest, error)
	PendingReceptions(ctx context.Context, actor user.Actor) ([]*TransferRequest, error)
}

type service struct {
	repo        Repository
	ledger      inventory.Ledger
	locations   LocationDirectory
	assignments AssignmentDirectory
	publisher   events.EventPublisher
	logger      *zap.Logger
}

// NewService creates a new transfer service.
func NewService(repo Repository, ledger inventory.Ledger, locations LocationDirectory, assignments AssignmentDirectory, publisher events.EventPublisher, logger *zap.Logger) Service {
	return &service{
		repo:        repo,
		ledger:      ledger,
		locations:   locations,
		assignments: assignments,
		publisher:   publisher,
		logger:      logger,
	}
}

func (s *service) Create(ctx context.Context, actor user.Actor, req CreateTransferRequest) (*TransferRequest, error) {
	if actor.Role != user.RoleSeller && actor.Role != user.RoleAdmin {
		return nil, apperrors.NewForbidden("only sellers may request transfers")
	}
	if req.ReferenceCode == "" {
		return nil, apperrors.NewValidationError("reference_code is required", "reference_code")
	}
	if req.Size == "" {
		return nil, apperrors.NewValidationError("size is required", "size")
	}
	if req.Quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive", "quantity")
	}

	purpose := Purpose(strings.ToUpper(req.Purpose))
	if purpose != PurposeClientPresent && purpose != PurposeRestock {
		return nil, apperrors.NewValidationError("purpose must be CLIENT_PRESENT or RESTOCK", "purpose")
	}
	pickupType := PickupType(strings.ToUpper(req.PickupType))
	if pickupType == "" {
		pickupType = PickupCourier
	}
	if pickupType != PickupCourier && pickupType != PickupSelf {
		return nil, apperrors.NewValidationError("pickup_type must be COURIER or SELF", "pickup_type")
	}

	sourceID, err := uuid.Parse(req.SourceLocationID)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid source_location_id", "source_location_id")
	}
	if sourceID == actor.LocationID {
		return nil, apperrors.NewValidationError("source and destination locations must differ", "source_location_id")
	}
	if err := s.locations.LocationExists(ctx, sourceID); err != nil {
		return nil, err
	}

	// Informational availability check; the binding check happens again at
	// accept time and at hand-off.
	v, err := s.ledger.GetVariant(ctx, req.ReferenceCode, req.Size, sourceID)
	if err != nil {
		return nil, err
	}
	if v.Quantity < req.Quantity {
		return nil, apperrors.NewInsufficientStock(v.Quantity, req.Quantity)
	}

	t := &TransferRequest{
		ID:              uuid.New(),
		RequesterID:     actor.ID,
		SourceID:        sourceID,
		DestinationID:   actor.LocationID,
		ReferenceCode:   req.ReferenceCode,
		Brand:           req.Brand,
		Model:           req.Model,
		Size:            req.Size,
		Quantity:        req.Quantity,
		Purpose:         purpose,
		PickupType:      pickupType,
		DestinationType: req.DestinationType,
		Status:          StatusPending,
		RequestNotes:    req.Notes,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("transfer requested",
		zap.String("transfer_id", t.ID.String()),
		zap.String("reference_code", t.ReferenceCode),
		zap.String("purpose", string(t.Purpose)),
		zap.Int("quantity", t.Quantity))
	return t, nil
}

func (s *service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*TransferRequest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Accept(ctx context.Context, actor user.Actor, id uuid.UUID, req AcceptRequest) (*TransferRequest, error) {
	if actor.Role != user.RoleWarehouseKeeper {
		return nil, apperrors.NewForbidden("only warehouse keepers may accept transfers")
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, StatusAccepted) {
		return nil, apperrors.NewInvalidTransition(string(t.Status), string(StatusAccepted))
	}

	if !req.Accepted {
		return s.transition(ctx, id, StatusPending, StatusCancelled, StatusUpdate{
			WarehouseKeeperID:  &actor.ID,
			CancelledAt:        now(),
			WarehouseNotes:     &req.Notes,
			CancellationReason: strptr("rejected by warehouse"),
		})
	}

	// Stock may have moved since the request was filed; re-check before
	// committing the keeper.
	v, err := s.ledger.GetVariant(ctx, t.ReferenceCode, t.Size, t.SourceID)
	if err != nil {
		return nil, err
	}
	if v.Quantity < t.Quantity {
		return nil, apperrors.NewInsufficientStock(v.Quantity, t.Quantity)
	}

	return s.transition(ctx, id, StatusPending, StatusAccepted, StatusUpdate{
		WarehouseKeeperID: &actor.ID,
		AcceptedAt:        now(),
		WarehouseNotes:    &req.Notes,
	})
}

func (s *service) Claim(ctx context.Context, actor user.Actor, id uuid.UUID, req ClaimRequest) (*TransferRequest, error) {
	if actor.Role != user.RoleCourier {
		return nil, apperrors.NewForbidden("only couriers may claim transfers")
	}
	var estimated *int
	if req.EstimatedPickupMinutes > 0 {
		estimated = &req.EstimatedPickupMinutes
	}
	t, err := s.repo.Claim(ctx, id, actor.ID, estimated, req.Notes)
	if err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, t, StatusAccepted, actor.ID)
	return t, nil
}

func (s *service) RegisterHandOff(ctx context.Context, actor user.Actor, id uuid.UUID, req HandOffRequest) (*TransferRequest, error) {
	if actor.Role != user.RoleWarehouseKeeper {
		return nil, apperrors.NewForbidden("only warehouse keepers may register a hand-off")
	}
	if !req.Successful {
		// Keeper declined to hand over; nothing moves, nothing is decremented.
		return s.repo.GetByID(ctx, id)
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	t, change, err := s.repo.RegisterHandOff(ctx, id, actor.ID, req.Notes, inventory.MovementParams{
		ReferenceCode: t.ReferenceCode,
		Size:          t.Size,
		LocationID:    t.SourceID,
		Quantity:      t.Quantity,
		ActorID:       actor.ID,
		ReferenceID:   &id,
		Notes:         "transfer hand-off to courier",
	})
	if err != nil {
		return nil, err
	}

	s.publishStockAdjusted(ctx, change)
	s.logger.Info("transfer handed off",
		zap.String("transfer_id", id.String()),
		zap.String("change_id", change.ID.String()),
		zap.Int("quantity", t.Quantity))
	return t, nil
}

func (s *service) ConfirmPickup(ctx context.Context, actor user.Actor, id uuid.UUID, req PickupRequest) (*TransferRequest, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAssignedCourier(t, actor); err != nil {
		return nil, err
	}
	if t.PickedUpAt == nil {
		return nil, apperrors.NewValidationError("goods have not been handed off yet", "transfer_id")
	}

	update := StatusUpdate{}
	if req.Notes != "" {
		update.CourierNotes = &req.Notes
	}
	return s.transitionWithEvent(ctx, id, StatusCourierAssigned, StatusInTransit, update, actor.ID)
}

func (s *service) ConfirmDelivery(ctx context.Context, actor user.Actor, id uuid.UUID, req DeliveryRequest) (*TransferRequest, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAssignedCourier(t, actor); err != nil {
		return nil, err
	}

	update := StatusUpdate{}
	if req.Notes != "" {
		update.CourierNotes = &req.Notes
	}
	if req.Successful {
		update.DeliveredAt = now()
		return s.transitionWithEvent(ctx, id, StatusInTransit, StatusDelivered, update, actor.ID)
	}

	// Failed deliveries keep the hand-off decrement in place; restoring the
	// stock is a separate administrative reversal.
	updated, err := s.transitionWithEvent(ctx, id, StatusInTransit, StatusDeliveryFailed, update, actor.ID)
	if err != nil {
		return nil, err
	}
	changeID := ""
	if updated.HandOffChangeID != nil {
		changeID = updated.HandOffChangeID.String()
	}
	s.logger.Warn("delivery failed, stock pending reversal",
		zap.String("transfer_id", id.String()),
		zap.String("hand_off_change_id", changeID))
	return updated, nil
}

func (s *service) ConfirmReception(ctx context.Context, actor user.Actor, id uuid.UUID, req ReceptionRequest) (*TransferRequest, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.RequesterID != actor.ID {
		return nil, apperrors.NewForbidden("only the original requester may confirm reception")
	}
	if !CanTransition(t.Status, StatusCompleted) {
		return nil, apperrors.NewInvalidTransition(string(t.Status), string(StatusCompleted))
	}
	if req.ReceivedQuantity < 0 {
		return nil, apperrors.NewValidationError("received_quantity cannot be negative", "received_quantity")
	}

	conditionOK := req.ConditionOK && req.ReceivedQuantity == t.Quantity
	if !conditionOK {
		// A problem reception still succeeds structurally; the transfer is
		// parked for manual reconciliation and no stock moves.
		return s.transitionWithEvent(ctx, id, StatusDelivered, StatusReceptionIssues, StatusUpdate{
			ConfirmedReceptionAt: now(),
			ReceivedQuantity:     &req.ReceivedQuantity,
			ReceptionNotes:       &req.Notes,
		}, actor.ID)
	}

	desc, err := s.ledger.GetDescriptor(ctx, t.ReferenceCode, t.SourceID)
	if err != nil {
		return nil, err
	}

	updated, change, err := s.repo.ConfirmReception(ctx, id, StatusUpdate{
		ConfirmedReceptionAt: now(),
		ReceivedQuantity:     &req.ReceivedQuantity,
		ReceptionNotes:       &req.Notes,
	}, inventory.MovementParams{
		ReferenceCode: t.ReferenceCode,
		Size:          t.Size,
		LocationID:    t.DestinationID,
		Quantity:      req.ReceivedQuantity,
		ActorID:       actor.ID,
		ReferenceID:   &id,
		Notes:         "transfer reception",
	}, desc)
	if err != nil {
		return nil, err
	}

	s.publishStockAdjusted(ctx, change)
	s.publishStatusChange(ctx, updated, StatusDelivered, actor.ID)
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, actor user.Actor, id uuid.UUID, req CancelRequest) (*TransferRequest, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case StatusPending, StatusAccepted:
		if t.RequesterID != actor.ID {
			return nil, apperrors.NewForbidden("only the original requester may cancel")
		}
	case StatusDeliveryFailed:
		// Closing out a failed delivery is an administrative action taken
		// after the stock reversal has been applied.
		if actor.Role != user.RoleAdmin {
			return nil, apperrors.NewForbidden("only administrators may close a failed delivery")
		}
	default:
		return nil, apperrors.NewInvalidTransition(string(t.Status), string(StatusCancelled))
	}

	return s.transitionWithEvent(ctx, id, t.Status, StatusCancelled, StatusUpdate{
		CancelledAt:        now(),
		CancellationReason: &req.Reason,
	}, actor.ID)
}

func (s *service) ReportIncident(ctx context.Context, actor user.Actor, id uuid.UUID, req IncidentRequest) (*TransportIncident, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAssignedCourier(t, actor); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, apperrors.NewValidationError("type is required", "type")
	}

	incident := &TransportIncident{
		ID:          uuid.New(),
		TransferID:  id,
		ReporterID:  actor.ID,
		Type:        req.Type,
		Description: req.Description,
	}
	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, err
	}
	s.logger.Warn("transport incident reported",
		zap.String("transfer_id", id.String()),
		zap.String("type", incident.Type))
	return incident, nil
}

func (s *service) ListIncidents(ctx context.Context, actor user.Actor, id uuid.UUID) ([]*TransportIncident, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListIncidents(ctx, id)
}

func (s *service) PendingForWarehouse(ctx context.Context, actor user.Actor) ([]*TransferRequest, error) {
	if actor.Role != user.RoleWarehouseKeeper {
		return nil, apperrors.NewForbidden("only warehouse keepers may list the warehouse queue")
	}
	locationIDs, err := s.assignments.AssignedLocationIDs(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(locationIDs) == 0 {
		locationIDs = []uuid.UUID{actor.LocationID}
	}
	return s.repo.PendingForWarehouse(ctx, locationIDs)
}

func (s *service) AcceptedForKeeper(ctx context.Context, actor user.Actor) ([]*TransferRequest, error) {
	if actor.Role != user.RoleWarehouseKeeper {
		return nil, apperrors.NewForbidden("only warehouse keepers may list their accepted transfers")
	}
	return s.repo.AcceptedForKeeper(ctx, actor.ID)
}

func (s *service) AvailableForCourier(ctx context.Context, actor user.Actor) ([]*TransferRequest, error) {
	if actor.Role != user.RoleCourier {
		return nil, apperrors.NewForbidden("only couriers may list available transfers")
	}
	return s.repo.AvailableForCourier(ctx, actor.ID)
}

func (s *service) HistoryForCourier(ctx context.Context, actor user.Actor, filter ListFilter) ([]*TransferRequest, error) {
	if actor.Role != user.RoleCourier {
		return nil, apperrors.NewForbidden("only couriers may list their delivery history")
	}
	return s.repo.HistoryForCourier(ctx, actor.ID, filter)
}

func (s *service) MyTransfers(ctx context.Context, actor user.Actor, filter ListFilter) ([]*TransferRequest, error) {
	return s.repo.ByRequester(ctx, actor.ID, filter)
}

func (s *service) PendingReceptions(ctx context.Context, actor user.Actor) ([]*TransferRequest, error) {
	return s.repo.PendingReceptions(ctx, actor.ID)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, expected, next Status, set StatusUpdate) (*TransferRequest, error) {
	return s.repo.UpdateStatus(ctx, id, expected, next, set)
}

func (s *service) transitionWithEvent(ctx context.Context, id uuid.UUID, expected, next Status, set StatusUpdate, actorID uuid.UUID) (*TransferRequest, error) {
	t, err := s.repo.UpdateStatus(ctx, id, expected, next, set)
	if err != nil {
		return nil, err
	}
	s.publishStatusChange(ctx, t, expected, actorID)
	return t, nil
}

func (s *service) publishStatusChange(ctx context.Context, t *TransferRequest, previous Status, actorID uuid.UUID) {
	event := events.TransferStatusChangedEvent{
		TransferID:     t.ID,
		PreviousStatus: string(previous),
		NewStatus:      string(t.Status),
		ActorID:        actorID,
		OccurredAt:     t.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish transfer status event",
			zap.String("transfer_id", t.ID.String()), zap.Error(err))
	}
}

func (s *service) publishStockAdjusted(ctx context.Context, change *inventory.InventoryChange) {
	event := events.StockAdjustedEvent{
		ChangeID:       change.ID,
		ReferenceCode:  change.ReferenceCode,
		Size:           change.Size,
		LocationID:     change.LocationID,
		ChangeType:     string(change.ChangeType),
		QuantityBefore: change.QuantityBefore,
		QuantityAfter:  change.QuantityAfter,
		OccurredAt:     change.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish stock adjusted event",
			zap.String("change_id", change.ID.String()), zap.Error(err))
	}
}

func requireAssignedCourier(t *TransferRequest, actor user.Actor) error {
	if actor.Role != user.RoleCourier {
		return apperrors.NewForbidden("only couriers may perform this action")
	}
	if t.CourierID == nil || *t.CourierID != actor.ID {
		return apperrors.NewForbidden("transfer is assigned to a different courier")
	}
	return nil
}

func now() *time.Time {
	t := time.Now().UTC()
	return &t
}

func strptr(s string) *string { return &s }
