package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
)

func setupTestRedis(t *testing.T) (*FirmCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFirmCache(client, 10*time.Minute), mr
}

func sampleFirm() *domain.Firm {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	f := &domain.Firm{
		ID:        "firm-1",
		Name:      "Acme Ventures",
		Slug:      "acme-ventures",
		CreatedAt: now,
	}
	f.Apply(domain.Aggregate{AvgResponsiveness: 4, AvgFairness: 4, AvgSupport: 3.7, TotalReviews: 3}, now)
	f.AggregateVersion = 3
	return f
}

func TestFirmCache_SetThenGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	f := sampleFirm()

	require.NoError(t, cache.Set(ctx, f))
	assert.True(t, mr.Exists("firm:acme-ventures"))
	assert.Equal(t, 10*time.Minute, mr.TTL("firm:acme-ventures"))

	got, err := cache.Get(ctx, "acme-ventures")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, 3.7, got.AvgSupport)
	assert.Equal(t, 3, got.TotalReviews)
	assert.Equal(t, 3.9, got.AvgRating())
	assert.Equal(t, int64(3), got.AggregateVersion)
	require.NotNil(t, got.LastReviewDate)
	assert.True(t, f.LastReviewDate.Equal(*got.LastReviewDate))
}

func TestFirmCache_SetKeepsNewerVersion(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	newer := sampleFirm()
	newer.Apply(domain.Aggregate{AvgResponsiveness: 5, AvgFairness: 5, AvgSupport: 5, TotalReviews: 4}, newer.UpdatedAt.Add(time.Minute))
	newer.AggregateVersion = 4
	require.NoError(t, cache.Set(ctx, newer))

	stale := sampleFirm()
	require.NoError(t, cache.Set(ctx, stale))

	got, err := cache.Get(ctx, "acme-ventures")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.AggregateVersion)
	assert.Equal(t, 4, got.TotalReviews)
}

func TestFirmCache_SetOutOfOrderWrites(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	versions := []int64{2, 5, 3, 4, 1}
	for _, v := range versions {
		f := sampleFirm()
		f.AggregateVersion = v
		f.TotalReviews = int(v)
		require.NoError(t, cache.Set(ctx, f))
	}

	got, err := cache.Get(ctx, "acme-ventures")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.AggregateVersion)
	assert.Equal(t, 5, got.TotalReviews)
}

func TestFirmCache_SetAfterDeleteStoresAgain(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleFirm()))
	require.NoError(t, cache.Delete(ctx, "acme-ventures"))
	require.NoError(t, cache.Set(ctx, sampleFirm()))

	_, err := cache.Get(ctx, "acme-ventures")
	assert.NoError(t, err)
}

func TestFirmCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	_, err := cache.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestFirmCache_Expires(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleFirm()))
	mr.FastForward(11 * time.Minute)

	_, err := cache.Get(ctx, "acme-ventures")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestFirmCache_Delete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleFirm()))
	require.NoError(t, cache.Delete(ctx, "acme-ventures"))
	assert.False(t, mr.Exists("firm:acme-ventures"))
}

func TestFirmCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.HSet("firm:broken", "firm", "{not json", "version", "1")

	_, err := cache.Get(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrCacheMiss)
}

func TestFirmCache_ServerDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "acme-ventures")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrCacheMiss)
}
