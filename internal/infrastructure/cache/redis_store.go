package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "stocksync:"
	sweepStateKey    = "sweeper:state"
	leaseKeyPrefix   = "lease:"
	dedupKeyPrefix   = "dedup:"
)

// releaseScript deletes the lease only while the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps sweep state, leases and dedup keys in Redis so that
// several server instances share them
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ""), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// SaveSweepState overwrites the stored sweep state
func (s *RedisStore) SaveSweepState(ctx context.Context, state SweepState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode sweep state: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+sweepStateKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save sweep state: %w", err)
	}
	return nil
}

// LoadSweepState reads the stored sweep state
func (s *RedisStore) LoadSweepState(ctx context.Context) (SweepState, bool, error) {
	payload, err := s.client.Get(ctx, s.keyPrefix+sweepStateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return SweepState{}, false, nil
	}
	if err != nil {
		return SweepState{}, false, fmt.Errorf("failed to load sweep state: %w", err)
	}

	var state SweepState
	if err := json.Unmarshal(payload, &state); err != nil {
		return SweepState{}, false, fmt.Errorf("failed to decode sweep state: %w", err)
	}
	return state, true, nil
}

// Acquire takes the lease with SET NX PX
func (s *RedisStore) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+leaseKeyPrefix+key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the lease if owner still holds it
func (s *RedisStore) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.keyPrefix + leaseKeyPrefix + key}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", key, err)
	}
	return nil
}

// MarkProcessed uses SETNX so only the first caller within ttl sees true
func (s *RedisStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+dedupKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s as processed: %w", key, err)
	}
	return ok, nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
