package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so ledger mutations can run
// inside a caller-owned transaction (the transfer hand-off and reception
// combine a stock mutation with a status update in one unit of work).
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// PostgresLedger implements Ledger against PostgreSQL using single atomic
// conditional updates per variant row — never read-then-write.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a new PostgreSQL inventory ledger.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) GetVariant(ctx context.Context, referenceCode, size string, locationID uuid.UUID) (*Variant, error) {
	return l.getVariant(ctx, l.db, referenceCode, size, locationID)
}

func (l *PostgresLedger) getVariant(ctx context.Context, db DBTX, referenceCode, size string, locationID uuid.UUID) (*Variant, error) {
	v := &Variant{}
	err := db.QueryRowContext(ctx, `
		SELECT id, product_id, reference_code, size, location_id, quantity, quantity_exhibition, created_at, updated_at
		FROM product_variants
		WHERE reference_code = $1 AND size = $2 AND location_id = $3`,
		referenceCode, size, locationID).
		Scan(&v.ID, &v.ProductID, &v.ReferenceCode, &v.Size, &v.LocationID,
			&v.Quantity, &v.QuantityExhibition, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("variant", fmt.Sprintf("%s/%s", referenceCode, size))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get variant", err)
	}
	return v, nil
}

func (l *PostgresLedger) GetDescriptor(ctx context.Context, referenceCode string, locationID uuid.UUID) (ProductDescriptor, error) {
	var d ProductDescriptor
	err := l.db.QueryRowContext(ctx, `
		SELECT reference_code, description, brand, model, color, unit_price, box_price
		FROM products
		WHERE reference_code = $1 AND location_id = $2 AND is_active = TRUE`,
		referenceCode, locationID).
		Scan(&d.ReferenceCode, &d.Description, &d.Brand, &d.Model, &d.Color, &d.UnitPrice, &d.BoxPrice)
	if err == sql.ErrNoRows {
		return d, apperrors.NewNotFound("product", referenceCode)
	}
	if err != nil {
		return d, apperrors.NewDatabaseError("get product descriptor", err)
	}
	return d, nil
}

func (l *PostgresLedger) Decrement(ctx context.Context, p MovementParams) (*InventoryChange, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin decrement", err)
	}
	defer tx.Rollback()

	change, err := l.DecrementTx(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("commit decrement", err)
	}
	return change, nil
}

// DecrementTx performs the decrement inside a caller-owned transaction. The
// quantity guard and the write are one statement so concurrent decrements on
// the same variant cannot both pass.
func (l *PostgresLedger) DecrementTx(ctx context.Context, db DBTX, p MovementParams) (*InventoryChange, error) {
	var variantID uuid.UUID
	var before, after int
	err := db.QueryRowContext(ctx, `
		UPDATE product_variants
		SET quantity = quantity - $1, updated_at = NOW()
		WHERE reference_code = $2 AND size = $3 AND location_id = $4 AND quantity >= $1
		RETURNING id, quantity + $1, quantity`,
		p.Quantity, p.ReferenceCode, p.Size, p.LocationID).
		Scan(&variantID, &before, &after)
	if err == sql.ErrNoRows {
		// Either the variant does not exist or the stock is short; re-read
		// to report which.
		v, verr := l.getVariant(ctx, db, p.ReferenceCode, p.Size, p.LocationID)
		if verr != nil {
			return nil, verr
		}
		return nil, apperrors.NewInsufficientStock(v.Quantity, p.Quantity)
	}
	if err != nil {
		return nil, apperrors.NewInventoryUpdateFailed("decrement", err)
	}

	return l.appendChange(ctx, db, &InventoryChange{
		ID:             uuid.New(),
		VariantID:      variantID,
		ReferenceCode:  p.ReferenceCode,
		Size:           p.Size,
		LocationID:     p.LocationID,
		ChangeType:     ChangeTransferPickup,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceID:    p.ReferenceID,
		ActorID:        p.ActorID,
		Notes:          p.Notes,
	})
}

func (l *PostgresLedger) IncrementOrCreate(ctx context.Context, p MovementParams, desc ProductDescriptor) (*InventoryChange, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin increment", err)
	}
	defer tx.Rollback()

	change, err := l.IncrementOrCreateTx(ctx, tx, p, desc)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("commit increment", err)
	}
	return change, nil
}

// IncrementOrCreateTx adds stock inside a caller-owned transaction, creating
// the product and variant at the location from desc when they do not exist.
func (l *PostgresLedger) IncrementOrCreateTx(ctx context.Context, db DBTX, p MovementParams, desc ProductDescriptor) (*InventoryChange, error) {
	var variantID uuid.UUID
	var before, after int
	err := db.QueryRowContext(ctx, `
		UPDATE product_variants
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE reference_code = $2 AND size = $3 AND location_id = $4
		RETURNING id, quantity - $1, quantity`,
		p.Quantity, p.ReferenceCode, p.Size, p.LocationID).
		Scan(&variantID, &before, &after)

	if err == sql.ErrNoRows {
		variantID, err = l.createVariant(ctx, db, p, desc)
		if err != nil {
			return nil, err
		}
		before, after = 0, p.Quantity
	} else if err != nil {
		return nil, apperrors.NewInventoryUpdateFailed("increment", err)
	}

	return l.appendChange(ctx, db, &InventoryChange{
		ID:             uuid.New(),
		VariantID:      variantID,
		ReferenceCode:  p.ReferenceCode,
		Size:           p.Size,
		LocationID:     p.LocationID,
		ChangeType:     ChangeTransferReception,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceID:    p.ReferenceID,
		ActorID:        p.ActorID,
		Notes:          p.Notes,
	})
}

func (l *PostgresLedger) createVariant(ctx context.Context, db DBTX, p MovementParams, desc ProductDescriptor) (uuid.UUID, error) {
	var productID uuid.UUID
	err := db.QueryRowContext(ctx, `
		SELECT id FROM products
		WHERE reference_code = $1 AND location_id = $2`,
		p.ReferenceCode, p.LocationID).Scan(&productID)
	if err == sql.ErrNoRows {
		productID = uuid.New()
		_, err = db.ExecContext(ctx, `
			INSERT INTO products (id, reference_code, description, brand, model, color, location_id, unit_price, box_price, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)`,
			productID, desc.ReferenceCode, desc.Description, desc.Brand, desc.Model,
			desc.Color, p.LocationID, desc.UnitPrice, desc.BoxPrice)
		if err != nil {
			return uuid.Nil, apperrors.NewInventoryUpdateFailed("create product", err)
		}
	} else if err != nil {
		return uuid.Nil, apperrors.NewInventoryUpdateFailed("lookup product", err)
	}

	variantID := uuid.New()
	_, err = db.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, reference_code, size, location_id, quantity, quantity_exhibition)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		variantID, productID, p.ReferenceCode, p.Size, p.LocationID, p.Quantity)
	if err != nil {
		return uuid.Nil, apperrors.NewInventoryUpdateFailed("create variant", err)
	}
	return variantID, nil
}

func (l *PostgresLedger) Reverse(ctx context.Context, originalChangeID, actorID uuid.UUID, reason string) (*InventoryChange, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin reversal", err)
	}
	defer tx.Rollback()

	original, err := l.getChange(ctx, tx, originalChangeID)
	if err != nil {
		return nil, err
	}

	var alreadyReversed bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM inventory_changes
			WHERE change_type = $1 AND reference_id = $2
		)`, ChangeReversal, originalChangeID).Scan(&alreadyReversed)
	if err != nil {
		return nil, apperrors.NewDatabaseError("check prior reversal", err)
	}
	if alreadyReversed {
		return nil, apperrors.NewValidationError("change has already been reversed", "original_change_id")
	}

	// Inverse delta: a decrement (before > after) is undone by adding the
	// difference back; an increment by subtracting it.
	delta := original.QuantityBefore - original.QuantityAfter

	var before, after int
	err = tx.QueryRowContext(ctx, `
		UPDATE product_variants
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2 AND quantity + $1 >= 0
		RETURNING quantity - $1, quantity`,
		delta, original.VariantID).Scan(&before, &after)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewInventoryUpdateFailed("reversal", fmt.Errorf("reversal would drive variant %s negative", original.VariantID))
	}
	if err != nil {
		return nil, apperrors.NewInventoryUpdateFailed("reversal", err)
	}

	change, err := l.appendChange(ctx, tx, &InventoryChange{
		ID:             uuid.New(),
		VariantID:      original.VariantID,
		ReferenceCode:  original.ReferenceCode,
		Size:           original.Size,
		LocationID:     original.LocationID,
		ChangeType:     ChangeReversal,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceID:    &original.ID,
		ActorID:        actorID,
		Notes:          reason,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("commit reversal", err)
	}
	return change, nil
}

func (l *PostgresLedger) GetChange(ctx context.Context, id uuid.UUID) (*InventoryChange, error) {
	return l.getChange(ctx, l.db, id)
}

func (l *PostgresLedger) getChange(ctx context.Context, db DBTX, id uuid.UUID) (*InventoryChange, error) {
	c := &InventoryChange{}
	err := db.QueryRowContext(ctx, `
		SELECT id, variant_id, reference_code, size, location_id, change_type,
		       quantity_before, quantity_after, reference_id, actor_id, notes, created_at
		FROM inventory_changes WHERE id = $1`, id).
		Scan(&c.ID, &c.VariantID, &c.ReferenceCode, &c.Size, &c.LocationID, &c.ChangeType,
			&c.QuantityBefore, &c.QuantityAfter, &c.ReferenceID, &c.ActorID, &c.Notes, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("inventory change", id.String())
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get inventory change", err)
	}
	return c, nil
}

func (l *PostgresLedger) ListChanges(ctx context.Context, referenceCode, size string, locationID uuid.UUID) ([]*InventoryChange, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, variant_id, reference_code, size, location_id, change_type,
		       quantity_before, quantity_after, reference_id, actor_id, notes, created_at
		FROM inventory_changes
		WHERE reference_code = $1 AND size = $2 AND location_id = $3
		ORDER BY created_at DESC`,
		referenceCode, size, locationID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list inventory changes", err)
	}
	defer rows.Close()

	var changes []*InventoryChange
	for rows.Next() {
		c := &InventoryChange{}
		if err := rows.Scan(&c.ID, &c.VariantID, &c.ReferenceCode, &c.Size, &c.LocationID, &c.ChangeType,
			&c.QuantityBefore, &c.QuantityAfter, &c.ReferenceID, &c.ActorID, &c.Notes, &c.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan inventory change", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (l *PostgresLedger) appendChange(ctx context.Context, db DBTX, c *InventoryChange) (*InventoryChange, error) {
	c.CreatedAt = time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory_changes
		  (id, variant_id, reference_code, size, location_id, change_type,
		   quantity_before, quantity_after, reference_id, actor_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.VariantID, c.ReferenceCode, c.Size, c.LocationID, c.ChangeType,
		c.QuantityBefore, c.QuantityAfter, c.ReferenceID, c.ActorID, c.Notes, c.CreatedAt)
	if err != nil {
		return nil, apperrors.NewInventoryUpdateFailed("append change record", err)
	}
	return c, nil
}
