// Package redis implements cache.Store using Redis, letting a fleet of
// engine instances share compiled artifacts. Artifacts are stored as JSON
// strings under keys prefixed with "tide:artifact:".
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := rediscache.New(client, rediscache.WithTTL(time.Hour))
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tidelang/tide"
	"github.com/tidelang/tide/cache"
	"github.com/tidelang/tide/compiler"
)

var _ cache.Store = (*Store)(nil)

const keyPrefix = "tide:artifact:"

// artifactKey returns the Redis key for a cache key: tide:artifact:{key}
func artifactKey(key cache.Key) string { return keyPrefix + string(key) }

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTTL sets an expiry on stored artifacts. Zero means no expiry.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// Store implements cache.Store backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
	ttl    time.Duration
}

// New creates a Redis-backed compilation cache. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the artifact for key, or tide.ErrArtifactNotFound.
func (s *Store) Get(ctx context.Context, key cache.Key) (*compiler.Artifact, error) {
	raw, err := s.client.Get(ctx, artifactKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, tide.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get artifact: %w", err)
	}

	var art compiler.Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		// A corrupt entry is treated as a miss so the engine recompiles.
		s.logger.Warn("dropping corrupt cached artifact",
			slog.String("key", string(key)),
			slog.String("error", err.Error()),
		)
		_ = s.client.Del(ctx, artifactKey(key)).Err()
		return nil, tide.ErrArtifactNotFound
	}
	return &art, nil
}

// Put stores the artifact under key, replacing any existing entry.
func (s *Store) Put(ctx context.Context, key cache.Key, art *compiler.Artifact) error {
	raw, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := s.client.Set(ctx, artifactKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis put artifact: %w", err)
	}
	return nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key cache.Key) error {
	if err := s.client.Del(ctx, artifactKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete artifact: %w", err)
	}
	return nil
}

// Close is a no-op because the caller owns the Redis client lifecycle.
func (s *Store) Close(_ context.Context) error { return nil }
