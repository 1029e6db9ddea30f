package repository

import (
	"context"
	"errors"
	"time"

	"github.com/RakeshKhadav/VC/internal/domain"
)

// ErrCacheMiss is returned by FirmCache.Get for an uncached slug.
var ErrCacheMiss = errors.New("cache miss")

// FirmFilter defines filter criteria for listing firms.
type FirmFilter struct {
	Search  *string
	Sort    domain.FirmSort
	Page    int
	PerPage int
}

// ReviewFilter defines filter criteria for listing reviews.
type ReviewFilter struct {
	FirmID   *string
	FirmSlug *string
	AuthorID *string
	Industry *string
	Year     *int
	Sort     domain.ReviewSort
	Page     int
	PerPage  int
}

// FirmRepository defines persistence operations for firms.
type FirmRepository interface {
	// EnsureBySlug inserts firm unless a firm with the same slug exists, then
	// returns the stored row. created reports whether this call inserted it.
	EnsureBySlug(ctx context.Context, firm *domain.Firm) (stored *domain.Firm, created bool, err error)

	// GetBySlug retrieves a firm by its slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Firm, error)

	// GetByID retrieves a firm by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Firm, error)

	// LockByID retrieves a firm and holds its row lock until the surrounding
	// transaction ends. Aggregate recomputes for one firm serialize on it.
	LockByID(ctx context.Context, id string) (*domain.Firm, error)

	// UpdateAggregate writes the derived rating fields of firm.
	UpdateAggregate(ctx context.Context, firm *domain.Firm) error

	// List returns firms matching the filter along with the total count.
	List(ctx context.Context, filter FirmFilter) ([]domain.Firm, int, error)
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	// Create inserts a new review.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review, joined with its firm's name and slug.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// RatingsByFirm returns the ratings of every review of a firm.
	RatingsByFirm(ctx context.Context, firmID string) ([]domain.Ratings, error)

	// List returns reviews matching the filter along with the total count.
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Upsert inserts the user keyed by ExternalID, or merges the non-empty
	// profile fields into the existing row. Plan is only set on insert.
	Upsert(ctx context.Context, user *domain.User) (stored *domain.User, created bool, err error)

	// GetByExternalID retrieves a user by the identity provider's id.
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	// UpdatePlan changes a user's plan.
	UpdatePlan(ctx context.Context, id string, plan domain.Plan, at time.Time) (*domain.User, error)
}

// QuotaRepository holds the per-user monthly view counters and the view ledger.
// The counter is authoritative for admission. The ledger is an audit log of
// admitted reads; within one period it agrees with the counter because both
// are written in the same transaction.
type QuotaRepository interface {
	// TryConsume increments the user's counter for period unless it already
	// reached limit. A limit <= 0 never refuses. ok is false when refused, in
	// which case used is the unchanged count.
	TryConsume(ctx context.Context, userID string, period time.Time, limit int) (used int, ok bool, err error)

	// Used returns the counter for period, 0 when none exists.
	Used(ctx context.Context, userID string, period time.Time) (int, error)

	// AppendView records an admitted read.
	AppendView(ctx context.Context, view *domain.ReviewView) error

	// CountViews counts recorded reads at or after since. Admission never
	// consults it.
	CountViews(ctx context.Context, userID string, since time.Time) (int, error)
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Firms   FirmRepository
	Reviews ReviewRepository
	Users   UserRepository
	Quotas  QuotaRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	// Repos returns repositories running outside any transaction.
	Repos() Repositories

	// WithinTx runs fn with repositories bound to one transaction. Nothing
	// fn wrote survives if it returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// FirmCache caches firm summaries by slug. Get returns ErrCacheMiss when the
// slug is not cached. Set never replaces an entry whose AggregateVersion is
// the same or higher.
type FirmCache interface {
	Get(ctx context.Context, slug string) (*domain.Firm, error)
	Set(ctx context.Context, firm *domain.Firm) error
	Delete(ctx context.Context, slug string) error
}
