package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/pkg/database"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

const userColumns = `id, external_id, email, first_name, last_name, image_url, plan, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func scanUser(row pgx.Row, extra ...any) (*domain.User, error) {
	var u domain.User
	dest := []any{
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.Plan,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert inserts the user or merges non-empty profile fields into the
// existing row. Empty incoming fields never overwrite stored values and the
// stored plan is kept. xmax = 0 identifies a freshly inserted row.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) (stored *domain.User, created bool, err error) {
	query := `
		INSERT INTO users (id, external_id, email, first_name, last_name, image_url, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (external_id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
			last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name),
			image_url = COALESCE(NULLIF(EXCLUDED.image_url, ''), users.image_url),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted`

	ctx, end := database.TraceQuery(ctx, "UpsertUser", query)
	defer func() { end(err) }()

	stored, err = scanUser(r.db.QueryRow(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.ImageURL,
		user.Plan,
		user.CreatedAt,
	), &created)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	return stored, created, nil
}

// GetByExternalID retrieves a user by identity provider id.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get user by external id: %w", err)
	}
	return u, nil
}

// UpdatePlan sets the user's plan and returns the updated row.
func (r *UserRepository) UpdatePlan(ctx context.Context, id string, plan domain.Plan, at time.Time) (*domain.User, error) {
	query := `
		UPDATE users SET plan = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, id, plan, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("update user plan: %w", err)
	}
	return u, nil
}
