package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleFirm() *domain.Firm {
	return &domain.Firm{
		ID:        "5b0e4c1e-0a55-4a8c-9a3e-8f6f1f8e2a01",
		Name:      "Acme Ventures",
		Slug:      "acme-ventures",
		Website:   "https://acme.vc",
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
}

func firmColumnNames() []string {
	return []string{
		"id", "name", "slug", "website", "avg_responsiveness", "avg_fairness", "avg_support",
		"total_reviews", "last_review_date", "created_at", "updated_at", "aggregate_version",
	}
}

func firmValues(f *domain.Firm) []any {
	return []any{
		f.ID, f.Name, f.Slug, f.Website, f.AvgResponsiveness, f.AvgFairness, f.AvgSupport,
		f.TotalReviews, f.LastReviewDate, f.CreatedAt, f.UpdatedAt, f.AggregateVersion,
	}
}

func firmRow(f *domain.Firm) *pgxmock.Rows {
	return pgxmock.NewRows(firmColumnNames()).AddRow(firmValues(f)...)
}

// ============================================================================
// Store
// ============================================================================

func TestStore_WithinTx_CommitsOnSuccess(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock)
	f := sampleFirm()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery("FROM firms WHERE id = \\$1 FOR UPDATE").
		WithArgs(f.ID).
		WillReturnRows(firmRow(f))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		_, err := repos.Firms.LockByID(ctx, f.ID)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock)
	boom := errors.New("insert review failed")

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(context.Context, repository.Repositories) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageBounds(t *testing.T) {
	limit, offset := pageBounds(0, 0)
	assert.Equal(t, defaultPerPage, limit)
	assert.Equal(t, 0, offset)

	limit, offset = pageBounds(3, 5)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 10, offset)
}

// ============================================================================
// FirmRepository
// ============================================================================

func TestFirmRepository_EnsureBySlug_Inserts(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)
	f := sampleFirm()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (slug) DO NOTHING")).
		WithArgs(f.ID, f.Name, f.Slug, f.Website, f.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM firms WHERE slug = \\$1").
		WithArgs(f.Slug).
		WillReturnRows(firmRow(f))

	stored, created, err := repo.EnsureBySlug(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, f.ID, stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFirmRepository_EnsureBySlug_ReturnsExisting(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)

	existing := sampleFirm()
	existing.TotalReviews = 4
	incoming := sampleFirm()
	incoming.ID = "9d7a3e55-1111-4f0b-8a55-000000000002"
	incoming.Name = "ACME   ventures!!"

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (slug) DO NOTHING")).
		WithArgs(incoming.ID, incoming.Name, incoming.Slug, incoming.Website, incoming.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FROM firms WHERE slug = \\$1").
		WithArgs(incoming.Slug).
		WillReturnRows(firmRow(existing))

	stored, created, err := repo.EnsureBySlug(context.Background(), incoming)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, stored.ID)
	assert.Equal(t, 4, stored.TotalReviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFirmRepository_GetBySlug_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)

	mock.ExpectQuery("FROM firms WHERE slug = \\$1").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetBySlug(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFirmRepository_GetByID_DBError(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)

	mock.ExpectQuery("FROM firms WHERE id = \\$1").
		WithArgs("f-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "f-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "get firm by id")
}

func TestFirmRepository_UpdateAggregate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)

	f := sampleFirm()
	f.Apply(domain.Aggregate{AvgResponsiveness: 4, AvgFairness: 4, AvgSupport: 3.7, TotalReviews: 3}, fixedNow)

	mock.ExpectQuery("UPDATE firms SET").
		WithArgs(f.ID, 4.0, 4.0, 3.7, 3, f.LastReviewDate, f.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"aggregate_version"}).AddRow(int64(4)))

	require.NoError(t, repo.UpdateAggregate(context.Background(), f))
	assert.Equal(t, int64(4), f.AggregateVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFirmRepository_UpdateAggregate_Missing(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)
	f := sampleFirm()

	mock.ExpectQuery("UPDATE firms SET").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	err := repo.UpdateAggregate(context.Background(), f)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFirmRepository_List_SearchAndSort(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)
	f := sampleFirm()

	search := " acme "
	rows := pgxmock.NewRows(append(firmColumnNames(), "total_count")).
		AddRow(append(firmValues(f), 1)...)
	mock.ExpectQuery("WHERE name ILIKE \\$1\\s+ORDER BY name ASC\\s+LIMIT \\$2 OFFSET \\$3").
		WithArgs("%acme%", 10, 10).
		WillReturnRows(rows)

	firms, total, err := repo.List(context.Background(), repository.FirmFilter{
		Search: &search, Sort: domain.FirmSortName, Page: 2, PerPage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, firms, 1)
	assert.Equal(t, "acme-ventures", firms[0].Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFirmRepository_List_Empty(t *testing.T) {
	mock := newMockPool(t)
	repo := NewFirmRepository(mock)

	mock.ExpectQuery("FROM firms").
		WithArgs(defaultPerPage, 0).
		WillReturnRows(pgxmock.NewRows(append(firmColumnNames(), "total_count")))

	firms, total, err := repo.List(context.Background(), repository.FirmFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, firms)
	assert.Empty(t, firms)
}
