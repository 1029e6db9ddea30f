package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/pkg/database"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

const firmColumns = `id, name, slug, website, avg_responsiveness, avg_fairness, avg_support,
	total_reviews, last_review_date, created_at, updated_at, aggregate_version`

// FirmRepository implements repository.FirmRepository using PostgreSQL.
type FirmRepository struct {
	db database.DBTX
}

// NewFirmRepository creates a new PostgreSQL-backed firm repository.
func NewFirmRepository(db database.DBTX) *FirmRepository {
	return &FirmRepository{db: db}
}

var _ repository.FirmRepository = (*FirmRepository)(nil)

func scanFirm(row pgx.Row, extra ...any) (*domain.Firm, error) {
	var f domain.Firm
	dest := []any{
		&f.ID,
		&f.Name,
		&f.Slug,
		&f.Website,
		&f.AvgResponsiveness,
		&f.AvgFairness,
		&f.AvgSupport,
		&f.TotalReviews,
		&f.LastReviewDate,
		&f.CreatedAt,
		&f.UpdatedAt,
		&f.AggregateVersion,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &f, nil
}

// EnsureBySlug inserts the firm unless its slug is taken, then reads the row
// back. Concurrent callers with the same slug converge on one firm.
func (r *FirmRepository) EnsureBySlug(ctx context.Context, firm *domain.Firm) (stored *domain.Firm, created bool, err error) {
	query := `
		INSERT INTO firms (id, name, slug, website, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (slug) DO NOTHING`

	ctx, end := database.TraceQuery(ctx, "EnsureFirm", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, firm.ID, firm.Name, firm.Slug, firm.Website, firm.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert firm %s: %w", firm.Slug, err)
	}

	stored, err = r.GetBySlug(ctx, firm.Slug)
	if err != nil {
		return nil, false, err
	}
	return stored, tag.RowsAffected() == 1, nil
}

// GetBySlug retrieves a firm by its slug.
func (r *FirmRepository) GetBySlug(ctx context.Context, slug string) (*domain.Firm, error) {
	query := `SELECT ` + firmColumns + ` FROM firms WHERE slug = $1`

	f, err := scanFirm(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get firm by slug: %w", err)
	}
	return f, nil
}

// GetByID retrieves a firm by its identifier.
func (r *FirmRepository) GetByID(ctx context.Context, id string) (*domain.Firm, error) {
	query := `SELECT ` + firmColumns + ` FROM firms WHERE id = $1`

	f, err := scanFirm(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get firm by id: %w", err)
	}
	return f, nil
}

// LockByID reads the firm with SELECT ... FOR UPDATE. It only serializes
// anything when the repository is bound to a transaction.
func (r *FirmRepository) LockByID(ctx context.Context, id string) (firm *domain.Firm, err error) {
	query := `SELECT ` + firmColumns + ` FROM firms WHERE id = $1 FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "LockFirm", query)
	defer func() { end(err) }()

	firm, err = scanFirm(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lock firm: %w", err)
	}
	return firm, nil
}

// UpdateAggregate writes the derived rating columns and bumps the firm's
// aggregate version, which is copied back onto firm.
func (r *FirmRepository) UpdateAggregate(ctx context.Context, firm *domain.Firm) (err error) {
	query := `
		UPDATE firms SET
			avg_responsiveness = $2,
			avg_fairness = $3,
			avg_support = $4,
			total_reviews = $5,
			last_review_date = $6,
			updated_at = $7,
			aggregate_version = aggregate_version + 1
		WHERE id = $1
		RETURNING aggregate_version`

	ctx, end := database.TraceQuery(ctx, "UpdateFirmAggregate", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		firm.ID,
		firm.AvgResponsiveness,
		firm.AvgFairness,
		firm.AvgSupport,
		firm.TotalReviews,
		firm.LastReviewDate,
		firm.UpdatedAt,
	).Scan(&firm.AggregateVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("update firm aggregate: %w", err)
	}
	return nil
}

var firmOrderBy = map[domain.FirmSort]string{
	domain.FirmSortRating:  "(avg_responsiveness + avg_fairness + avg_support) DESC, total_reviews DESC, name ASC",
	domain.FirmSortName:    "name ASC",
	domain.FirmSortReviews: "total_reviews DESC, name ASC",
	domain.FirmSortRecent:  "last_review_date DESC NULLS LAST, name ASC",
}

// List returns firms matching the filter with the total count.
func (r *FirmRepository) List(ctx context.Context, filter repository.FirmFilter) ([]domain.Firm, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argIndex))
		args = append(args, "%"+strings.TrimSpace(*filter.Search)+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := firmOrderBy[filter.Sort]
	if !ok {
		orderBy = firmOrderBy[domain.FirmSortRating]
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM firms
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		firmColumns, whereClause, orderBy, argIndex, argIndex+1,
	)

	limit, offset := pageBounds(filter.Page, filter.PerPage)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list firms: %w", err)
	}
	defer rows.Close()

	var (
		firms      []domain.Firm
		totalCount int
	)
	for rows.Next() {
		f, err := scanFirm(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan firm row: %w", err)
		}
		firms = append(firms, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate firm rows: %w", err)
	}

	if firms == nil {
		firms = []domain.Firm{}
	}
	return firms, totalCount, nil
}
