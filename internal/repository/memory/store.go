// Package memory is an in-process repository.Store for local runs and tests.
// A transaction holds the store's write lock for its whole duration and works
// on a copy of the state that replaces the live state only on success.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
)

type quotaKey struct {
	userID string
	period int64
}

type state struct {
	firms          map[string]domain.Firm
	firmIDBySlug   map[string]string
	reviews        map[string]domain.Review
	users          map[string]domain.User
	userIDByExtern map[string]string
	quotas         map[quotaKey]int
	views          []domain.ReviewView
}

func newState() *state {
	return &state{
		firms:          make(map[string]domain.Firm),
		firmIDBySlug:   make(map[string]string),
		reviews:        make(map[string]domain.Review),
		users:          make(map[string]domain.User),
		userIDByExtern: make(map[string]string),
		quotas:         make(map[quotaKey]int),
	}
}

func (s *state) clone() *state {
	return &state{
		firms:          maps.Clone(s.firms),
		firmIDBySlug:   maps.Clone(s.firmIDBySlug),
		reviews:        maps.Clone(s.reviews),
		users:          maps.Clone(s.users),
		userIDByExtern: maps.Clone(s.userIDByExtern),
		quotas:         maps.Clone(s.quotas),
		views:          slices.Clone(s.views),
	}
}

// Store is a mutex-guarded in-memory repository.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

var _ repository.Store = (*Store)(nil)

// Repos returns repositories whose calls are each atomic on their own.
func (s *Store) Repos() repository.Repositories {
	return bind(handle{store: s})
}

// WithinTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds. Transactions are fully serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, bind(handle{store: s, tx: work})); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

func bind(h handle) repository.Repositories {
	return repository.Repositories{
		Firms:   &FirmRepository{h: h},
		Reviews: &ReviewRepository{h: h},
		Users:   &UserRepository{h: h},
		Quotas:  &QuotaRepository{h: h},
	}
}

// handle routes a repository call either to a transaction's working copy,
// whose lock is already held, or to the live state under the store's lock.
type handle struct {
	store *Store
	tx    *state
}

func (h handle) read(fn func(st *state)) {
	if h.tx != nil {
		fn(h.tx)
		return
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	fn(h.store.state)
}

func (h handle) write(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(h.store.state)
}

func periodKey(userID string, period time.Time) quotaKey {
	return quotaKey{userID: userID, period: period.UTC().Unix()}
}

// paginate returns one page of items.
func paginate[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		perPage = 20
	}
	start := 0
	if page > 1 {
		start = (page - 1) * perPage
	}
	if start >= len(items) {
		return []T{}
	}
	end := min(start+perPage, len(items))
	return items[start:end]
}
