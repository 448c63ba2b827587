// Package session keeps short-lived conversational state per chat in Redis.
// Values are opaque tokens owned by the caller; an expired key reads as empty.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// Store is a Redis-backed session store.
type Store struct {
	client *redis.Client
}

// NewStore creates a session store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the token stored for key, or "" if there is none or it expired.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	token, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session get: %w", err)
	}
	return token, nil
}

// Set stores token for key, replacing any previous value, for ttl.
func (s *Store) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

// Clear removes key. Clearing a missing key is not an error.
func (s *Store) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
