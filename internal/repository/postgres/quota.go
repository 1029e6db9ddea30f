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
)

// QuotaRepository implements repository.QuotaRepository using PostgreSQL.
type QuotaRepository struct {
	db database.DBTX
}

// NewQuotaRepository creates a new PostgreSQL-backed quota repository.
func NewQuotaRepository(db database.DBTX) *QuotaRepository {
	return &QuotaRepository{db: db}
}

var _ repository.QuotaRepository = (*QuotaRepository)(nil)

// TryConsume increments the (user, period) counter in a single conditional
// upsert. The row lock taken by the upsert serializes concurrent callers for
// the same user, and the WHERE clause re-evaluates against the committed
// count, so at most limit increments ever succeed in a period.
func (r *QuotaRepository) TryConsume(ctx context.Context, userID string, period time.Time, limit int) (used int, ok bool, err error) {
	query := `
		INSERT INTO view_quotas (user_id, period_start, used, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (user_id, period_start) DO UPDATE SET
			used = view_quotas.used + 1,
			updated_at = NOW()
		WHERE $3 <= 0 OR view_quotas.used < $3
		RETURNING used`

	ctx, end := database.TraceQuery(ctx, "ConsumeViewQuota", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query, userID, period, limit).Scan(&used)
	if err == nil {
		return used, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("consume view quota: %w", err)
	}

	used, err = r.Used(ctx, userID, period)
	if err != nil {
		return 0, false, err
	}
	return used, false, nil
}

// Used returns the counter for the period.
func (r *QuotaRepository) Used(ctx context.Context, userID string, period time.Time) (int, error) {
	query := `SELECT used FROM view_quotas WHERE user_id = $1 AND period_start = $2`

	var used int
	if err := r.db.QueryRow(ctx, query, userID, period).Scan(&used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get view quota: %w", err)
	}
	return used, nil
}

// AppendView records an admitted read in the view ledger.
func (r *QuotaRepository) AppendView(ctx context.Context, view *domain.ReviewView) (err error) {
	query := `INSERT INTO review_views (id, user_id, review_id, viewed_at) VALUES ($1, $2, $3, $4)`

	ctx, end := database.TraceQuery(ctx, "AppendReviewView", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, view.ID, view.UserID, view.ReviewID, view.ViewedAt); err != nil {
		return fmt.Errorf("append review view: %w", err)
	}
	return nil
}

// CountViews counts ledger entries for the user at or after since.
func (r *QuotaRepository) CountViews(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM review_views WHERE user_id = $1 AND viewed_at >= $2`

	var n int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count review views: %w", err)
	}
	return n, nil
}
