package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
)

const (
	keyPrefix    = "idempotency:order:"
	pendingValue = "__pending__"
)

// IdempotencyStore implements repository.IdempotencyStore using Redis.
// A reserved key holds a pending marker until Complete replaces it with
// the serialized result.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new Redis-backed idempotency store.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Reserve claims key with SET NX. See repository.IdempotencyStore.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	k := keyPrefix + key

	// Two rounds cover a key that expires between SET NX and GET.
	for range 2 {
		ok, err := s.client.SetNX(ctx, k, pendingValue, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis reserve idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		data, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get idempotency key: %w", err)
		}
		if string(data) == pendingValue {
			return nil, repository.ErrIdempotencyInFlight
		}
		return data, nil
	}
	return nil, repository.ErrIdempotencyInFlight
}

// Complete stores result under key, replacing the pending marker.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, result, ttl).Err(); err != nil {
		return fmt.Errorf("redis complete idempotency key: %w", err)
	}
	return nil
}

// Release deletes key so a later request can retry.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis release idempotency key: %w", err)
	}
	return nil
}
