package user

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, location_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.LocationID, user.IsActive)
	if err != nil {
		return apperrors.NewDatabaseError("create user", err)
	}
	return nil
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, location_id, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id), id.String())
}

func (r *postgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, location_id, is_active, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email), email)
}

func (r *postgresRepository) scanUser(row *sql.Row, ref string) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.LocationID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("user", ref)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	return user, nil
}

func (r *postgresRepository) AssignLocation(ctx context.Context, a *LocationAssignment) error {
	query := `
		INSERT INTO user_location_assignments (id, user_id, location_id, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, location_id) DO UPDATE SET is_active = EXCLUDED.is_active
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.UserID, a.LocationID, a.IsActive)
	if err != nil {
		return apperrors.NewDatabaseError("assign location", err)
	}
	return nil
}

func (r *postgresRepository) AssignedLocationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT location_id FROM user_location_assignments
		WHERE user_id = $1 AND is_active = TRUE
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list assigned locations", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewDatabaseError("scan assigned location", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
