// Package redis is a Storage backed by Redis, for hosts that run more than
// one storefront process over the same shoppers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/crystalbeauty/pkg/database"
)

// Store implements storage.Storage using Redis strings.
type Store struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key, e.g. "storefront:" + "cart_a@example.com".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL sets an expiry on every write. Zero, the default, never expires.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New creates a Redis-backed store.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (val string, found bool, err error) {
	k := s.prefix + key
	ctx, end := database.TraceCommand(ctx, "GET", k)
	defer func() { end(err) }()

	val, err = s.client.Get(ctx, k).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	k := s.prefix + key
	ctx, end := database.TraceCommand(ctx, "SET", k)
	defer func() { end(err) }()

	if err = s.client.Set(ctx, k, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) (err error) {
	k := s.prefix + key
	ctx, end := database.TraceCommand(ctx, "DEL", k)
	defer func() { end(err) }()

	if err = s.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
