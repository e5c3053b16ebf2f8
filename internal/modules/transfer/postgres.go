package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tustockya/tustockya-backend/internal/modules/inventory"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// priorityOrder sorts CLIENT_PRESENT ahead of RESTOCK, then oldest first
// within the tier. Queue queries substitute the timestamp column relevant to
// the queue.
const priorityOrder = `ORDER BY CASE purpose WHEN 'CLIENT_PRESENT' THEN 0 ELSE 1 END, %s ASC`

const transferColumns = `
	id, requester_id, source_location_id, destination_location_id,
	reference_code, brand, model, size, quantity, purpose, pickup_type, destination_type,
	status, warehouse_keeper_id, courier_id,
	requested_at, accepted_at, courier_accepted_at, picked_up_at, delivered_at,
	confirmed_reception_at, cancelled_at,
	received_quantity, estimated_pickup_minutes,
	request_notes, warehouse_notes, courier_notes, reception_notes, cancellation_reason,
	hand_off_change_id, created_at, updated_at`

// PostgresRepository implements Repository against PostgreSQL. The claim and
// transition writes are single conditional UPDATEs; hand-off and reception
// compose the ledger's Tx operations with the status change inside one
// transaction.
type PostgresRepository struct {
	db     *sql.DB
	ledger *inventory.PostgresLedger
}

// NewPostgresRepository creates a new PostgreSQL transfer repository.
func NewPostgresRepository(db *sql.DB, ledger *inventory.PostgresLedger) *PostgresRepository {
	return &PostgresRepository{db: db, ledger: ledger}
}

func (r *PostgresRepository) Create(ctx context.Context, t *TransferRequest) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.RequestedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transfer_requests
		  (id, requester_id, source_location_id, destination_location_id,
		   reference_code, brand, model, size, quantity, purpose, pickup_type, destination_type,
		   status, requested_at, request_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		t.ID, t.RequesterID, t.SourceID, t.DestinationID,
		t.ReferenceCode, t.Brand, t.Model, t.Size, t.Quantity, t.Purpose, t.PickupType, t.DestinationType,
		t.Status, t.RequestedAt, t.RequestNotes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("create transfer", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*TransferRequest, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *PostgresRepository) getByID(ctx context.Context, db inventory.DBTX, id uuid.UUID) (*TransferRequest, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfer_requests WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("transfer", id.String())
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get transfer", err)
	}
	return t, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next Status, set StatusUpdate) (*TransferRequest, error) {
	t, err := r.updateStatus(ctx, r.db, id, expected, next, set)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// updateStatus is the guarded transition write: the UPDATE only matches when
// the row still holds the expected status, so two racing transitions on the
// same transfer cannot both succeed.
func (r *PostgresRepository) updateStatus(ctx context.Context, db inventory.DBTX, id uuid.UUID, expected, next Status, set StatusUpdate) (*TransferRequest, error) {
	assignments := []string{"status = $1", "updated_at = NOW()"}
	args := []interface{}{next}

	add := func(column string, value interface{}) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if set.WarehouseKeeperID != nil {
		add("warehouse_keeper_id", *set.WarehouseKeeperID)
	}
	if set.AcceptedAt != nil {
		add("accepted_at", *set.AcceptedAt)
	}
	if set.PickedUpAt != nil {
		add("picked_up_at", *set.PickedUpAt)
	}
	if set.DeliveredAt != nil {
		add("delivered_at", *set.DeliveredAt)
	}
	if set.ConfirmedReceptionAt != nil {
		add("confirmed_reception_at", *set.ConfirmedReceptionAt)
	}
	if set.CancelledAt != nil {
		add("cancelled_at", *set.CancelledAt)
	}
	if set.ReceivedQuantity != nil {
		add("received_quantity", *set.ReceivedQuantity)
	}
	if set.WarehouseNotes != nil {
		add("warehouse_notes", *set.WarehouseNotes)
	}
	if set.CourierNotes != nil {
		add("courier_notes", *set.CourierNotes)
	}
	if set.ReceptionNotes != nil {
		add("reception_notes", *set.ReceptionNotes)
	}
	if set.CancellationReason != nil {
		add("cancellation_reason", *set.CancellationReason)
	}
	if set.HandOffChangeID != nil {
		add("hand_off_change_id", *set.HandOffChangeID)
	}

	args = append(args, id, expected)
	query := fmt.Sprintf(`
		UPDATE transfer_requests SET %s
		WHERE id = $%d AND status = $%d
		RETURNING `+transferColumns,
		strings.Join(assignments, ", "), len(args)-1, len(args))

	t, err := scanTransfer(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		// Re-read to distinguish a missing transfer from a stale status.
		current, gerr := r.getByID(ctx, db, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.NewInvalidTransition(string(current.Status), string(next))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("update transfer status", err)
	}
	return t, nil
}

func (r *PostgresRepository) Claim(ctx context.Context, id uuid.UUID, courierID uuid.UUID, estimatedMinutes *int, notes string) (*TransferRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE transfer_requests
		SET status = $1, courier_id = $2, courier_accepted_at = NOW(),
		    estimated_pickup_minutes = $3, courier_notes = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6 AND courier_id IS NULL
		RETURNING `+transferColumns,
		StatusCourierAssigned, courierID, estimatedMinutes, notes, id, StatusAccepted)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		current, gerr := r.getByID(ctx, r.db, id)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == StatusAccepted || current.CourierID != nil {
			return nil, apperrors.NewAlreadyClaimed(id.String())
		}
		return nil, apperrors.NewInvalidTransition(string(current.Status), string(StatusCourierAssigned))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("claim transfer", err)
	}
	return t, nil
}

func (r *PostgresRepository) RegisterHandOff(ctx context.Context, id uuid.UUID, keeperID uuid.UUID, notes string, decrement inventory.MovementParams) (*TransferRequest, *inventory.InventoryChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("begin hand-off", err)
	}
	defer tx.Rollback()

	change, err := r.ledger.DecrementTx(ctx, tx, decrement)
	if err != nil {
		return nil, nil, err
	}

	// Stamp the hand-off without advancing status; the picked_up_at guard
	// keeps the decrement from ever firing twice for one transfer.
	row := tx.QueryRowContext(ctx, `
		UPDATE transfer_requests
		SET picked_up_at = NOW(), warehouse_notes = $1, hand_off_change_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND warehouse_keeper_id = $5 AND picked_up_at IS NULL
		RETURNING `+transferColumns,
		notes, change.ID, id, StatusCourierAssigned, keeperID)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		current, gerr := r.getByID(ctx, tx, id)
		if gerr != nil {
			return nil, nil, gerr
		}
		if current.Status != StatusCourierAssigned {
			return nil, nil, apperrors.NewInvalidTransition(string(current.Status), string(StatusCourierAssigned))
		}
		if current.PickedUpAt != nil {
			return nil, nil, apperrors.NewValidationError("goods already handed off for this transfer", "transfer_id")
		}
		return nil, nil, apperrors.NewForbidden("only the accepting warehouse keeper may hand off")
	}
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("register hand-off", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperrors.NewDatabaseError("commit hand-off", err)
	}
	return t, change, nil
}

func (r *PostgresRepository) ConfirmReception(ctx context.Context, id uuid.UUID, set StatusUpdate, increment inventory.MovementParams, desc inventory.ProductDescriptor) (*TransferRequest, *inventory.InventoryChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("begin reception", err)
	}
	defer tx.Rollback()

	change, err := r.ledger.IncrementOrCreateTx(ctx, tx, increment, desc)
	if err != nil {
		return nil, nil, err
	}

	t, err := r.updateStatus(ctx, tx, id, StatusDelivered, StatusCompleted, set)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperrors.NewDatabaseError("commit reception", err)
	}
	return t, change, nil
}

func (r *PostgresRepository) PendingForWarehouse(ctx context.Context, locationIDs []uuid.UUID) ([]*TransferRequest, error) {
	ids := make([]string, len(locationIDs))
	for i, l := range locationIDs {
		ids[i] = l.String()
	}
	query := `SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE status = $1 AND source_location_id = ANY($2) ` +
		fmt.Sprintf(priorityOrder, "requested_at")
	return r.list(ctx, query, StatusPending, pq.Array(ids))
}

func (r *PostgresRepository) AcceptedForKeeper(ctx context.Context, keeperID uuid.UUID) ([]*TransferRequest, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE warehouse_keeper_id = $1 AND status = ANY($2) ` +
		fmt.Sprintf(priorityOrder, "accepted_at")
	return r.list(ctx, query, keeperID,
		pq.Array([]string{string(StatusAccepted), string(StatusCourierAssigned), string(StatusInTransit)}))
}

func (r *PostgresRepository) AvailableForCourier(ctx context.Context, courierID uuid.UUID) ([]*TransferRequest, error) {
	// Unclaimed accepted transfers plus this courier's active ones.
	query := `SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE (status = $1 AND courier_id IS NULL)
		   OR (courier_id = $2 AND status = ANY($3)) ` +
		fmt.Sprintf(priorityOrder, "accepted_at")
	return r.list(ctx, query, StatusAccepted, courierID,
		pq.Array([]string{string(StatusCourierAssigned), string(StatusInTransit)}))
}

func (r *PostgresRepository) HistoryForCourier(ctx context.Context, courierID uuid.UUID, filter ListFilter) ([]*TransferRequest, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfer_requests WHERE courier_id = $1`
	args := []interface{}{courierID}
	query, args = applyFilter(query, args, filter)
	query += ` ORDER BY courier_accepted_at DESC`
	return r.list(ctx, query, args...)
}

func (r *PostgresRepository) ByRequester(ctx context.Context, requesterID uuid.UUID, filter ListFilter) ([]*TransferRequest, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfer_requests WHERE requester_id = $1`
	args := []interface{}{requesterID}
	query, args = applyFilter(query, args, filter)
	query += ` ORDER BY requested_at DESC`
	return r.list(ctx, query, args...)
}

func (r *PostgresRepository) PendingReceptions(ctx context.Context, requesterID uuid.UUID) ([]*TransferRequest, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE requester_id = $1 AND status = $2
		ORDER BY delivered_at ASC`
	return r.list(ctx, query, requesterID, StatusDelivered)
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, statuses []Status) ([]*TransferRequest, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	query := `SELECT ` + transferColumns + `
		FROM transfer_requests WHERE status = ANY($1) ` +
		fmt.Sprintf(priorityOrder, "requested_at")
	return r.list(ctx, query, pq.Array(values))
}

func (r *PostgresRepository) CreateIncident(ctx context.Context, incident *TransportIncident) error {
	incident.ReportedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transport_incidents (id, transfer_id, reporter_id, type, description, resolved, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		incident.ID, incident.TransferID, incident.ReporterID,
		incident.Type, incident.Description, incident.Resolved, incident.ReportedAt)
	if err != nil {
		return apperrors.NewDatabaseError("create incident", err)
	}
	return nil
}

func (r *PostgresRepository) ListIncidents(ctx context.Context, transferID uuid.UUID) ([]*TransportIncident, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, transfer_id, reporter_id, type, description, resolved, reported_at
		FROM transport_incidents WHERE transfer_id = $1
		ORDER BY reported_at ASC`, transferID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list incidents", err)
	}
	defer rows.Close()

	var incidents []*TransportIncident
	for rows.Next() {
		i := &TransportIncident{}
		if err := rows.Scan(&i.ID, &i.TransferID, &i.ReporterID, &i.Type, &i.Description, &i.Resolved, &i.ReportedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan incident", err)
		}
		incidents = append(incidents, i)
	}
	return incidents, rows.Err()
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]*TransferRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list transfers", err)
	}
	defer rows.Close()

	var transfers []*TransferRequest
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan transfer", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func applyFilter(query string, args []interface{}, filter ListFilter) (string, []interface{}) {
	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			values[i] = string(s)
		}
		args = append(args, pq.Array(values))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND requested_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND requested_at <= $%d", len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransfer(row rowScanner) (*TransferRequest, error) {
	t := &TransferRequest{}
	err := row.Scan(
		&t.ID, &t.RequesterID, &t.SourceID, &t.DestinationID,
		&t.ReferenceCode, &t.Brand, &t.Model, &t.Size, &t.Quantity, &t.Purpose, &t.PickupType, &t.DestinationType,
		&t.Status, &t.WarehouseKeeperID, &t.CourierID,
		&t.RequestedAt, &t.AcceptedAt, &t.CourierAcceptedAt, &t.PickedUpAt, &t.DeliveredAt,
		&t.ConfirmedReceptionAt, &t.CancelledAt,
		&t.ReceivedQuantity, &t.EstimatedPickupMinutes,
		&t.RequestNotes, &t.WarehouseNotes, &t.CourierNotes, &t.ReceptionNotes, &t.CancellationReason,
		&t.HandOffChangeID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}
