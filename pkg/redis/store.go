package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// JSONStore keeps JSON-encoded values of type T under a key prefix.
type JSONStore[T any] struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewJSONStore[T any](client goredis.UniversalClient, prefix string, ttl time.Duration) *JSONStore[T] {
	return &JSONStore[T]{client: client, prefix: prefix, ttl: ttl}
}

func (s *JSONStore[T]) key(k string) string {
	return s.prefix + k
}

// Get returns the stored value; ok is false on a miss.
func (s *JSONStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var out T
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode cached value: %w", err)
	}
	return out, true, nil
}

func (s *JSONStore[T]) Set(ctx context.Context, key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached value: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
