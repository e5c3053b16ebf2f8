package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/cache"
	"github.com/tustockya/tustockya-backend/internal/modules/user"
)

// Staleness thresholds for the attention-needed projection.
const (
	urgentPendingAge       = 30 * time.Minute
	unconfirmedDeliveryAge = 2 * time.Hour
)

// Summary is the per-status counter block shared by all role dashboards.
type Summary struct {
	Pending         int `json:"pending"`
	Accepted        int `json:"accepted"`
	CourierAssigned int `json:"courier_assigned"`
	InTransit       int `json:"in_transit"`
	Delivered       int `json:"delivered"`
	Completed       int `json:"completed"`
	DeliveryFailed  int `json:"delivery_failed"`
	ReceptionIssues int `json:"reception_issues"`
	Cancelled       int `json:"cancelled"`
}

// AttentionItem flags a transfer that has sat in a state longer than its
// threshold and needs a human to look at it.
type AttentionItem struct {
	Transfer *TransferRequest `json:"transfer"`
	Reason   string           `json:"reason"`
	Age      string           `json:"age"`
}

// Dashboard is the role-scoped read view.
type Dashboard struct {
	Role            user.Role          `json:"role"`
	Summary         Summary            `json:"summary"`
	Queue           []*TransferRequest `json:"queue"`
	AttentionNeeded []*AttentionItem   `json:"attention_needed"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// DashboardService builds role dashboards over the transfer store. Results
// are cached briefly; the views tolerate staleness.
type DashboardService struct {
	repo        Repository
	assignments AssignmentDirectory
	cache       cache.Cache
	ttl         time.Duration
	logger      *zap.Logger
}

// NewDashboardService creates a dashboard projector.
func NewDashboardService(repo Repository, assignments AssignmentDirectory, c cache.Cache, ttl time.Duration, logger *zap.Logger) *DashboardService {
	return &DashboardService{repo: repo, assignments: assignments, cache: c, ttl: ttl, logger: logger}
}

// ForActor builds the dashboard for the actor's role: sellers see their own
// transfers, keepers and couriers see their queues, administrators see the
// whole board.
func (d *DashboardService) ForActor(ctx context.Context, actor user.Actor) (*Dashboard, error) {
	key := fmt.Sprintf("dashboard:%s:%s", actor.Role, actor.ID)

	cached := &Dashboard{}
	if hit, err := d.cache.Get(ctx, key, cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		d.logger.Warn("dashboard cache read failed", zap.Error(err))
	}

	queue, err := d.queueFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	board := &Dashboard{
		Role:            actor.Role,
		Summary:         summarize(queue),
		Queue:           queue,
		AttentionNeeded: attentionNeeded(queue, time.Now().UTC()),
		GeneratedAt:     time.Now().UTC(),
	}

	if err := d.cache.Set(ctx, key, board, d.ttl); err != nil {
		d.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return board, nil
}

func (d *DashboardService) queueFor(ctx context.Context, actor user.Actor) ([]*TransferRequest, error) {
	switch actor.Role {
	case user.RoleWarehouseKeeper:
		locationIDs, err := d.assignments.AssignedLocationIDs(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if len(locationIDs) == 0 {
			locationIDs = []uuid.UUID{actor.LocationID}
		}
		pending, err := d.repo.PendingForWarehouse(ctx, locationIDs)
		if err != nil {
			return nil, err
		}
		accepted, err := d.repo.AcceptedForKeeper(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return append(pending, accepted...), nil
	case user.RoleCourier:
		return d.repo.AvailableForCourier(ctx, actor.ID)
	case user.RoleAdmin:
		return d.repo.ListByStatus(ctx, []Status{
			StatusPending, StatusAccepted, StatusCourierAssigned,
			StatusInTransit, StatusDelivered, StatusDeliveryFailed, StatusReceptionIssues,
		})
	default:
		return d.repo.ByRequester(ctx, actor.ID, ListFilter{})
	}
}

func summarize(transfers []*TransferRequest) Summary {
	var s Summary
	for _, t := range transfers {
		switch t.Status {
		case StatusPending:
			s.Pending++
		case StatusAccepted:
			s.Accepted++
		case StatusCourierAssigned:
			s.CourierAssigned++
		case StatusInTransit:
			s.InTransit++
		case StatusDelivered:
			s.Delivered++
		case StatusCompleted:
			s.Completed++
		case StatusDeliveryFailed:
			s.DeliveryFailed++
		case StatusReceptionIssues:
			s.ReceptionIssues++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// attentionNeeded surfaces stale transfers: an urgent request nobody has
// accepted, or a delivery the requester never confirmed. Nothing is
// auto-cancelled; the projection only flags.
func attentionNeeded(transfers []*TransferRequest, at time.Time) []*AttentionItem {
	var items []*AttentionItem
	for _, t := range transfers {
		switch {
		case t.Status == StatusPending && t.Purpose == PurposeClientPresent && at.Sub(t.RequestedAt) > urgentPendingAge:
			items = append(items, &AttentionItem{
				Transfer: t,
				Reason:   "client waiting, request unaccepted",
				Age:      at.Sub(t.RequestedAt).Round(time.Minute).String(),
			})
		case t.Status == StatusDelivered && t.DeliveredAt != nil && at.Sub(*t.DeliveredAt) > unconfirmedDeliveryAge:
			items = append(items, &AttentionItem{
				Transfer: t,
				Reason:   "delivered but reception unconfirmed",
				Age:      at.Sub(*t.DeliveredAt).Round(time.Minute).String(),
			})
		case t.Status == StatusDeliveryFailed:
			items = append(items, &AttentionItem{
				Transfer: t,
				Reason:   "delivery failed, stock reversal pending",
				Age:      at.Sub(t.UpdatedAt).Round(time.Minute).String(),
			})
		}
	}
	return items
}
