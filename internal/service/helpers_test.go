package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/event"
	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/internal/repository/memory"
	rediscache "github.com/RakeshKhadav/VC/internal/repository/redis"
	pkgkafka "github.com/RakeshKhadav/VC/pkg/kafka"
	"github.com/RakeshKhadav/VC/pkg/logger"
	"github.com/RakeshKhadav/VC/pkg/middleware"
)

// --- Mocks ---

type mockFirmCache struct {
	mock.Mock
}

func (m *mockFirmCache) Get(ctx context.Context, slug string) (*domain.Firm, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Firm), args.Error(1)
}

func (m *mockFirmCache) Set(ctx context.Context, firm *domain.Firm) error {
	args := m.Called(ctx, firm)
	return args.Error(0)
}

func (m *mockFirmCache) Delete(ctx context.Context, slug string) error {
	args := m.Called(ctx, slug)
	return args.Error(0)
}

type mockProfileProvider struct {
	mock.Mock
}

func (m *mockProfileProvider) Profile(ctx context.Context, claims *middleware.Claims) (domain.Profile, error) {
	args := m.Called(ctx, claims)
	return args.Get(0).(domain.Profile), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recordingPublisher) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// failingStore fails every aggregate write made inside a transaction.
type failingStore struct {
	*memory.Store
	err error
}

type failingFirms struct {
	repository.FirmRepository
	err error
}

func (f failingFirms) UpdateAggregate(context.Context, *domain.Firm) error { return f.err }

func (s *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.Firms = failingFirms{FirmRepository: repos.Firms, err: s.err}
		return fn(ctx, repos)
	})
}

// failingViewStore fails every view append made inside a transaction.
type failingViewStore struct {
	*memory.Store
	err error
}

type failingViews struct {
	repository.QuotaRepository
	err error
}

func (f failingViews) AppendView(context.Context, *domain.ReviewView) error { return f.err }

func (s *failingViewStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.Quotas = failingViews{QuotaRepository: repos.Quotas, err: s.err}
		return fn(ctx, repos)
	})
}

// interleavedStore runs between after a firm lookup made outside any
// transaction returns and before the caller sees the result.
type interleavedStore struct {
	*memory.Store
	between func()
}

func (s *interleavedStore) Repos() repository.Repositories {
	repos := s.Store.Repos()
	repos.Firms = interleavedFirms{FirmRepository: repos.Firms, store: s}
	return repos
}

type interleavedFirms struct {
	repository.FirmRepository
	store *interleavedStore
}

func (f interleavedFirms) GetBySlug(ctx context.Context, slug string) (*domain.Firm, error) {
	firm, err := f.FirmRepository.GetBySlug(ctx, slug)
	if between := f.store.between; between != nil {
		f.store.between = nil
		between()
	}
	return firm, err
}

// --- Test Helpers ---

func newRedisFirmCache(t *testing.T) *rediscache.FirmCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return rediscache.NewFirmCache(client, 5*time.Minute)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type harness struct {
	store    repository.Store
	pub      *recordingPublisher
	metrics  *Metrics
	clock    *clock
	profiles *mockProfileProvider
	reviews  *ReviewService
	firms    *FirmService
	users    *UserService
	gate     *AccessGate
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, memory.NewStore(), nil)
}

func newHarnessWith(t *testing.T, store repository.Store, cache repository.FirmCache) *harness {
	t.Helper()
	h := &harness{
		store:    store,
		pub:      &recordingPublisher{},
		metrics:  NewMetrics(nil),
		clock:    &clock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)},
		profiles: new(mockProfileProvider),
	}
	log := logger.Discard()
	producer := event.NewProducer(h.pub, log)
	policy := domain.QuotaPolicy{FreeMonthlyViews: domain.DefaultFreeMonthlyViews}

	h.reviews = NewReviewService(store, cache, producer, h.metrics, log)
	h.firms = NewFirmService(store, cache, producer, h.metrics, log)
	h.users = NewUserService(store, h.profiles, policy, producer, h.metrics, log)
	h.gate = NewAccessGate(store, h.users, policy, producer, h.metrics, log)
	h.reviews.now = h.clock.now
	h.firms.now = h.clock.now
	h.users.now = h.clock.now
	h.gate.now = h.clock.now
	return h
}

func ratings(resp, fair, supp float64) domain.Ratings {
	return domain.Ratings{Responsiveness: resp, Fairness: fair, Support: supp}
}

func submitInput(firmName string, r domain.Ratings) *SubmitReviewInput {
	return &SubmitReviewInput{
		FirmName:   firmName,
		Ratings:    r,
		ReviewText: "Responsive partners, clear terms, and useful intros.",
	}
}

func claimsFor(subject string) *middleware.Claims {
	return &middleware.Claims{Subject: subject, Email: subject + "@founders.test"}
}

func (h *harness) submit(t *testing.T, firmName string, r domain.Ratings) (*domain.Review, *domain.Firm) {
	t.Helper()
	review, firm, err := h.reviews.Submit(context.Background(), submitInput(firmName, r))
	if err != nil {
		t.Fatalf("submit review: %v", err)
	}
	return review, firm
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }
