package location

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

type postgresRepository struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL location repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateLocation(ctx context.Context, l *Location) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, type, address, phone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.Name, l.Type, l.Address, l.Phone, l.IsActive)
	if err != nil {
		return apperrors.NewDatabaseError("create location", err)
	}
	return nil
}

func (r *postgresRepository) GetLocationByID(ctx context.Context, id uuid.UUID) (*Location, error) {
	l := &Location{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, type, address, phone, is_active, created_at
		FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Type, &l.Address, &l.Phone, &l.IsActive, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("location", id.String())
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get location", err)
	}
	return l, nil
}

func (r *postgresRepository) ListLocations(ctx context.Context, activeOnly bool) ([]*Location, error) {
	query := `
		SELECT id, name, type, address, phone, is_active, created_at
		FROM locations`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list locations", err)
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		l := &Location{}
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.Address, &l.Phone, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan location", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}
