package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/pkg/database"
)

const defaultPerPage = 20

// Pool is the connection surface the store needs. *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type Pool interface {
	database.DBTX
	database.TxStarter
	Ping(ctx context.Context) error
}

// Store is the PostgreSQL-backed repository.Store.
type Store struct {
	pool Pool
}

// NewStore creates a store over pool.
func NewStore(pool Pool) *Store {
	return &Store{pool: pool}
}

var _ repository.Store = (*Store)(nil)

// Repos returns repositories bound to the pool.
func (s *Store) Repos() repository.Repositories {
	return bind(s.pool)
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken by the
// repositories (firm FOR UPDATE, quota counter upsert) are held until commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return database.InTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, bind(tx))
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func bind(db database.DBTX) repository.Repositories {
	return repository.Repositories{
		Firms:   NewFirmRepository(db),
		Reviews: NewReviewRepository(db),
		Users:   NewUserRepository(db),
		Quotas:  NewQuotaRepository(db),
	}
}

// pageBounds converts a 1-based page into LIMIT and OFFSET.
func pageBounds(page, perPage int) (limit, offset int) {
	limit = perPage
	if limit <= 0 {
		limit = defaultPerPage
	}
	if page > 1 {
		offset = (page - 1) * limit
	}
	return limit, offset
}
