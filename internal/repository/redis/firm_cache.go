package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
)

const keyPrefix = "firm:"

// setIfNewerScript stores a firm snapshot unless the cached entry carries the
// same or a higher aggregate version. Returns 1 when stored.
var setIfNewerScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "firm", ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 1
`)

// FirmCache implements repository.FirmCache using Redis. Each entry is a
// hash holding a JSON snapshot of the firm and its aggregate version.
type FirmCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFirmCache creates a new Redis-backed firm cache.
func NewFirmCache(client *redis.Client, ttl time.Duration) *FirmCache {
	return &FirmCache{
		client: client,
		ttl:    ttl,
	}
}

var _ repository.FirmCache = (*FirmCache)(nil)

// Get returns the cached firm or repository.ErrCacheMiss.
func (c *FirmCache) Get(ctx context.Context, slug string) (*domain.Firm, error) {
	vals, err := c.client.HMGet(ctx, keyPrefix+slug, "firm", "version").Result()
	if err != nil {
		return nil, fmt.Errorf("redis get firm: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	rawVersion, _ := vals[1].(string)

	var firm domain.Firm
	if err := json.Unmarshal([]byte(data), &firm); err != nil {
		return nil, fmt.Errorf("unmarshal firm: %w", err)
	}
	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse firm version: %w", err)
	}
	firm.AggregateVersion = version
	return &firm, nil
}

// Set stores the firm with the configured TTL unless a snapshot with the same
// or a newer aggregate version is already cached.
func (c *FirmCache) Set(ctx context.Context, firm *domain.Firm) error {
	data, err := json.Marshal(firm)
	if err != nil {
		return fmt.Errorf("marshal firm: %w", err)
	}

	err = setIfNewerScript.Run(ctx, c.client, []string{keyPrefix + firm.Slug},
		firm.AggregateVersion, data, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set firm: %w", err)
	}
	return nil
}

// Delete evicts a firm.
func (c *FirmCache) Delete(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, keyPrefix+slug).Err(); err != nil {
		return fmt.Errorf("redis del firm: %w", err)
	}
	return nil
}
