package redis

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "payrec:idemp:"

// inFlightMarker claims a key while its first request is still being
// processed. The NUL prefix keeps it distinct from any JSON response.
var inFlightMarker = []byte("\x00in-flight")

// IdempotencyStore implements usecase.IdempotencyStore on Redis. A key is
// claimed with SETNX, holds an in-flight marker until the response is
// stored, and replays the response for the rest of the TTL.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// CheckAndSet claims the key for the current request.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
	fullKey := idempotencyPrefix + key

	claimed, err := s.client.SetNX(ctx, fullKey, inFlightMarker, ttl).Result()
	if err != nil {
		return false, nil, err
	}

	if claimed {
		return false, nil, nil
	}

	stored, err := s.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// The earlier claim expired between SETNX and GET.
		return false, nil, nil
	}

	if err != nil {
		return false, nil, err
	}

	if bytes.Equal(stored, inFlightMarker) {
		// The first request is still running; let this one proceed and
		// let the last finished response win.
		return false, nil, nil
	}

	return true, stored, nil
}

// Update stores the final response for the key.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyPrefix+key, response, ttl).Err()
}
