package transfer

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/events"
	"github.com/tustockya/tustockya-backend/internal/modules/inventory"
	"github.com/tustockya/tustockya-backend/internal/modules/user"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

type fixture struct {
	ledger  *inventory.MemoryLedger
	repo    *MemoryRepository
	service Service

	bodega uuid.UUID
	local  uuid.UUID

	seller user.Actor
	keeper user.Actor
	c1     user.Actor
	c2     user.Actor
	admin  user.Actor
}

type stubLocations struct{}

func (stubLocations) LocationExists(ctx context.Context, id uuid.UUID) error { return nil }

type stubAssignments struct {
	ids []uuid.UUID
}

func (s stubAssignments) AssignedLocationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.ids, nil
}

func newFixture(t *testing.T, bodegaStock int) *fixture {
	t.Helper()

	bodega := uuid.New()
	local := uuid.New()

	ledger := inventory.NewMemoryLedger()
	ledger.Seed(inventory.ProductDescriptor{
		ReferenceCode: "NK-AF1-001",
		Description:   "Air Force 1",
		Brand:         "Nike",
		Model:         "AF1",
		UnitPrice:     120,
	}, "42", bodega, bodegaStock)

	repo := NewMemoryRepository(ledger)
	svc := NewService(repo, ledger, stubLocations{}, stubAssignments{ids: []uuid.UUID{bodega}},
		events.NewNoopPublisher(nil), zap.NewNop())

	return &fixture{
		ledger:  ledger,
		repo:    repo,
		service: svc,
		bodega:  bodega,
		local:   local,
		seller:  user.Actor{ID: uuid.New(), Role: user.RoleSeller, LocationID: local},
		keeper:  user.Actor{ID: uuid.New(), Role: user.RoleWarehouseKeeper, LocationID: bodega},
		c1:      user.Actor{ID: uuid.New(), Role: user.RoleCourier, LocationID: bodega},
		c2:      user.Actor{ID: uuid.New(), Role: user.RoleCourier, LocationID: bodega},
		admin:   user.Actor{ID: uuid.New(), Role: user.RoleAdmin, LocationID: bodega},
	}
}

func (f *fixture) create(t *testing.T, qty int) *TransferRequest {
	t.Helper()
	tr, err := f.service.Create(context.Background(), f.seller, CreateTransferRequest{
		SourceLocationID: f.bodega.String(),
		ReferenceCode:    "NK-AF1-001",
		Size:             "42",
		Quantity:         qty,
		Purpose:          "CLIENT_PRESENT",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, tr.Status)
	return tr
}

func (f *fixture) stockAt(t *testing.T, locationID uuid.UUID) int {
	t.Helper()
	v, err := f.ledger.GetVariant(context.Background(), "NK-AF1-001", "42", locationID)
	if err != nil {
		if apperrors.HasCode(err, "NotFound") {
			return 0
		}
		t.Fatalf("get variant: %v", err)
	}
	return v.Quantity
}

// advance walks a transfer up to hand-off: accept, claim by c1, hand-off.
func (f *fixture) advanceToHandOff(t *testing.T, id uuid.UUID) *TransferRequest {
	t.Helper()
	ctx := context.Background()

	_, err := f.service.Accept(ctx, f.keeper, id, AcceptRequest{Accepted: true})
	require.NoError(t, err)

	_, err = f.service.Claim(ctx, f.c1, id, ClaimRequest{EstimatedPickupMinutes: 15})
	require.NoError(t, err)

	tr, err := f.service.RegisterHandOff(ctx, f.keeper, id, HandOffRequest{Successful: true})
	require.NoError(t, err)
	require.NotNil(t, tr.PickedUpAt)
	require.NotNil(t, tr.HandOffChangeID)
	return tr
}

func TestTransferHappyPath(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	f.advanceToHandOff(t, tr.ID)
	assert.Equal(t, 2, f.stockAt(t, f.bodega))

	_, err := f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.NoError(t, err)

	_, err = f.service.ConfirmDelivery(ctx, f.c1, tr.ID, DeliveryRequest{Successful: true})
	require.NoError(t, err)

	done, err := f.service.ConfirmReception(ctx, f.seller, tr.ID, ReceptionRequest{
		ReceivedQuantity: 3,
		ConditionOK:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 2, f.stockAt(t, f.bodega))
	// The variant did not exist at the destination; reception created it.
	assert.Equal(t, 3, f.stockAt(t, f.local))

	changes, err := f.ledger.ListChanges(ctx, "NK-AF1-001", "42", f.bodega)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, inventory.ChangeTransferPickup, changes[0].ChangeType)
	assert.Equal(t, 5, changes[0].QuantityBefore)
	assert.Equal(t, 2, changes[0].QuantityAfter)

	received, err := f.ledger.ListChanges(ctx, "NK-AF1-001", "42", f.local)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, inventory.ChangeTransferReception, received[0].ChangeType)
}

func TestAcceptRechecksStock(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)

	// Stock is consumed elsewhere between request and acceptance.
	_, err := f.ledger.Decrement(ctx, inventory.MovementParams{
		ReferenceCode: "NK-AF1-001", Size: "42", LocationID: f.bodega,
		Quantity: 4, ActorID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = f.service.Accept(ctx, f.keeper, tr.ID, AcceptRequest{Accepted: true})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "InsufficientStock"))

	current, err := f.repo.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, current.Status)
}

func TestConcurrentClaimExactlyOneWinner(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	_, err := f.service.Accept(ctx, f.keeper, tr.ID, AcceptRequest{Accepted: true})
	require.NoError(t, err)

	couriers := []user.Actor{f.c1, f.c2}
	results := make([]error, len(couriers))

	var wg sync.WaitGroup
	for i, courier := range couriers {
		wg.Add(1)
		go func(i int, courier user.Actor) {
			defer wg.Done()
			_, results[i] = f.service.Claim(ctx, courier, tr.ID, ClaimRequest{})
		}(i, courier)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case apperrors.HasCode(err, "AlreadyClaimed"):
			conflicts++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, conflicts)
}

func TestHandOffHoldsOnInsufficientStock(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	_, err := f.service.Accept(ctx, f.keeper, tr.ID, AcceptRequest{Accepted: true})
	require.NoError(t, err)
	_, err = f.service.Claim(ctx, f.c1, tr.ID, ClaimRequest{})
	require.NoError(t, err)

	// Stock disappears after acceptance but before the physical hand-off.
	_, err = f.ledger.Decrement(ctx, inventory.MovementParams{
		ReferenceCode: "NK-AF1-001", Size: "42", LocationID: f.bodega,
		Quantity: 4, ActorID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = f.service.RegisterHandOff(ctx, f.keeper, tr.ID, HandOffRequest{Successful: true})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "InsufficientStock"))

	// The transfer is held, not advanced, and nothing was stamped.
	current, err := f.repo.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCourierAssigned, current.Status)
	assert.Nil(t, current.PickedUpAt)
	assert.Equal(t, 1, f.stockAt(t, f.bodega))
}

func TestHandOffFiresAtMostOnce(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	f.advanceToHandOff(t, tr.ID)

	_, err := f.service.RegisterHandOff(ctx, f.keeper, tr.ID, HandOffRequest{Successful: true})
	require.Error(t, err)
	assert.Equal(t, 2, f.stockAt(t, f.bodega))
}

func TestPickupRequiresHandOff(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	_, err := f.service.Accept(ctx, f.keeper, tr.ID, AcceptRequest{Accepted: true})
	require.NoError(t, err)
	_, err = f.service.Claim(ctx, f.c1, tr.ID, ClaimRequest{})
	require.NoError(t, err)

	_, err = f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "ValidationError"))
}

func TestDeliveryFailedThenReversal(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	handedOff := f.advanceToHandOff(t, tr.ID)
	assert.Equal(t, 2, f.stockAt(t, f.bodega))

	_, err := f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.NoError(t, err)

	failed, err := f.service.ConfirmDelivery(ctx, f.c1, tr.ID, DeliveryRequest{Successful: false, Notes: "address unreachable"})
	require.NoError(t, err)
	assert.Equal(t, StatusDeliveryFailed, failed.Status)

	// Stock stays decremented until an administrator reverses the hand-off.
	assert.Equal(t, 2, f.stockAt(t, f.bodega))

	reversal, err := f.ledger.Reverse(ctx, *handedOff.HandOffChangeID, f.admin.ID, "delivery failed")
	require.NoError(t, err)
	assert.Equal(t, inventory.ChangeReversal, reversal.ChangeType)
	require.NotNil(t, reversal.ReferenceID)
	assert.Equal(t, *handedOff.HandOffChangeID, *reversal.ReferenceID)
	assert.Equal(t, 5, f.stockAt(t, f.bodega))

	// The administrator then closes out the failed transfer.
	closed, err := f.service.Cancel(ctx, f.admin, tr.ID, CancelRequest{Reason: "stock restored after failed delivery"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, closed.Status)
}

func TestCancelWhileAccepted(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	_, err := f.service.Accept(ctx, f.keeper, tr.ID, AcceptRequest{Accepted: true})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, f.seller, tr.ID, CancelRequest{Reason: "no longer needed"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.stockAt(t, f.bodega))

	changes, err := f.ledger.ListChanges(ctx, "NK-AF1-001", "42", f.bodega)
	require.NoError(t, err)
	assert.Empty(t, changes)

	// The cancelled transfer rejects further transitions.
	_, err = f.service.Accept(ctx, f.keeper, tr.ID, AcceptRequest{Accepted: true})
	assert.True(t, apperrors.HasCode(err, "InvalidTransition"))
	_, err = f.service.Claim(ctx, f.c1, tr.ID, ClaimRequest{})
	assert.True(t, apperrors.HasCode(err, "InvalidTransition"))
}

func TestCancelRequiresRequester(t *testing.T) {
	f := newFixture(t, 5)
	tr := f.create(t, 3)

	other := user.Actor{ID: uuid.New(), Role: user.RoleSeller, LocationID: f.local}
	_, err := f.service.Cancel(context.Background(), other, tr.ID, CancelRequest{})
	assert.True(t, apperrors.HasCode(err, "Forbidden"))
}

func TestWarehouseRejection(t *testing.T) {
	f := newFixture(t, 5)
	tr := f.create(t, 3)

	rejected, err := f.service.Accept(context.Background(), f.keeper, tr.ID, AcceptRequest{Accepted: false, Notes: "reserved for display"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rejected.Status)
}

func TestReceptionIssues(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	f.advanceToHandOff(t, tr.ID)
	_, err := f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.NoError(t, err)
	_, err = f.service.ConfirmDelivery(ctx, f.c1, tr.ID, DeliveryRequest{Successful: true})
	require.NoError(t, err)

	// Two of three pairs arrived damaged; the call succeeds structurally
	// but parks the transfer and moves no stock.
	parked, err := f.service.ConfirmReception(ctx, f.seller, tr.ID, ReceptionRequest{
		ReceivedQuantity: 1,
		ConditionOK:      true,
		Notes:            "two boxes water damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReceptionIssues, parked.Status)
	assert.Equal(t, 0, f.stockAt(t, f.local))
	assert.Equal(t, 2, f.stockAt(t, f.bodega))
}

func TestReceptionRequiresRequester(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	f.advanceToHandOff(t, tr.ID)
	_, err := f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.NoError(t, err)
	_, err = f.service.ConfirmDelivery(ctx, f.c1, tr.ID, DeliveryRequest{Successful: true})
	require.NoError(t, err)

	_, err = f.service.ConfirmReception(ctx, f.keeper, tr.ID, ReceptionRequest{ReceivedQuantity: 3, ConditionOK: true})
	assert.True(t, apperrors.HasCode(err, "Forbidden"))
}

func TestDeliveryRequiresAssignedCourier(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	f.advanceToHandOff(t, tr.ID)
	_, err := f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.NoError(t, err)

	_, err = f.service.ConfirmDelivery(ctx, f.c2, tr.ID, DeliveryRequest{Successful: true})
	assert.True(t, apperrors.HasCode(err, "Forbidden"))
}

func TestHandOffRequiresAcceptingKeeper(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	_, err := f.service.Accept(ctx, f.keeper, tr.ID, AcceptRequest{Accepted: true})
	require.NoError(t, err)
	_, err = f.service.Claim(ctx, f.c1, tr.ID, ClaimRequest{})
	require.NoError(t, err)

	otherKeeper := user.Actor{ID: uuid.New(), Role: user.RoleWarehouseKeeper, LocationID: f.bodega}
	_, err = f.service.RegisterHandOff(ctx, otherKeeper, tr.ID, HandOffRequest{Successful: true})
	assert.True(t, apperrors.HasCode(err, "Forbidden"))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.seller, CreateTransferRequest{
		SourceLocationID: f.seller.LocationID.String(), // same as destination
		ReferenceCode:    "NK-AF1-001",
		Size:             "42",
		Quantity:         1,
		Purpose:          "RESTOCK",
	})
	assert.True(t, apperrors.HasCode(err, "ValidationError"))

	_, err = f.service.Create(ctx, f.seller, CreateTransferRequest{
		SourceLocationID: f.bodega.String(),
		ReferenceCode:    "NK-AF1-001",
		Size:             "42",
		Quantity:         0,
		Purpose:          "RESTOCK",
	})
	assert.True(t, apperrors.HasCode(err, "ValidationError"))

	_, err = f.service.Create(ctx, f.keeper, CreateTransferRequest{
		SourceLocationID: f.bodega.String(),
		ReferenceCode:    "NK-AF1-001",
		Size:             "42",
		Quantity:         1,
		Purpose:          "RESTOCK",
	})
	assert.True(t, apperrors.HasCode(err, "Forbidden"))
}

func TestCourierQueueOrdering(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()

	restock, err := f.service.Create(ctx, f.seller, CreateTransferRequest{
		SourceLocationID: f.bodega.String(),
		ReferenceCode:    "NK-AF1-001",
		Size:             "42",
		Quantity:         2,
		Purpose:          "RESTOCK",
	})
	require.NoError(t, err)

	urgent := f.create(t, 1) // CLIENT_PRESENT, created after the restock

	_, err = f.service.Accept(ctx, f.keeper, restock.ID, AcceptRequest{Accepted: true})
	require.NoError(t, err)
	_, err = f.service.Accept(ctx, f.keeper, urgent.ID, AcceptRequest{Accepted: true})
	require.NoError(t, err)

	queue, err := f.service.AvailableForCourier(ctx, f.c1)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	// Client-present requests jump ahead even though they arrived later.
	assert.Equal(t, urgent.ID, queue[0].ID)
	assert.Equal(t, restock.ID, queue[1].ID)
}

func TestPendingReceptions(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	f.advanceToHandOff(t, tr.ID)
	_, err := f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.NoError(t, err)
	_, err = f.service.ConfirmDelivery(ctx, f.c1, tr.ID, DeliveryRequest{Successful: true})
	require.NoError(t, err)

	pending, err := f.service.PendingReceptions(ctx, f.seller)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tr.ID, pending[0].ID)
}

func TestIncidentReporting(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	tr := f.create(t, 3)
	f.advanceToHandOff(t, tr.ID)
	_, err := f.service.ConfirmPickup(ctx, f.c1, tr.ID, PickupRequest{})
	require.NoError(t, err)

	_, err = f.service.ReportIncident(ctx, f.c2, tr.ID, IncidentRequest{Type: "delay", Description: "traffic"})
	assert.True(t, apperrors.HasCode(err, "Forbidden"))

	incident, err := f.service.ReportIncident(ctx, f.c1, tr.ID, IncidentRequest{Type: "delay", Description: "road closed"})
	require.NoError(t, err)
	assert.False(t, incident.Resolved)

	// Reporting does not transition the transfer.
	current, err := f.repo.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, current.Status)

	incidents, err := f.service.ListIncidents(ctx, f.seller, tr.ID)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "delay", incidents[0].Type)
}
