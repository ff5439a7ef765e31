// Package cache provides the best-effort TTL cache in front of the
// aggregation queries. Failures never surface to callers: a broken
// backend degrades reads to misses and writes to no-ops.
package cache

import (
	"context"
	"strings"
	"time"

	"directus-usage-tracker/config"

	"github.com/rs/zerolog/log"
)

// Key namespaces. Every cache key starts with one of these, and the
// pattern-clear admin routes operate on them.
const (
	NamespaceCollections = "analytics:collections"
	NamespaceActivity    = "analytics:activity"
	NamespaceTimeseries  = "analytics:timeseries"
	NamespaceAll         = "analytics"
)

// Store is the backing key-value container. Implementations must be
// safe for concurrent use. Patterns follow the Redis MATCH glob
// dialect: '*' matches any run of characters, '?' a single character.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ClearPattern(ctx context.Context, pattern string) error
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}

// Service wraps a Store with namespace-based default TTLs and
// swallow-and-log error handling. A nil *Service behaves as a disabled
// cache, so callers never need a nil check.
type Service struct {
	store      Store
	defaultTTL time.Duration
	prefixTTLs []prefixTTL
}

type prefixTTL struct {
	prefix string
	ttl    time.Duration
}

// NewService builds the cache service over the given store. TTLs come
// from configuration, in milliseconds.
func NewService(cfg config.CacheConfig, store Store) *Service {
	return &Service{
		store:      store,
		defaultTTL: time.Duration(cfg.DefaultTTLMs) * time.Millisecond,
		prefixTTLs: []prefixTTL{
			{NamespaceCollections, time.Duration(cfg.CollectionsTTLMs) * time.Millisecond},
			{NamespaceTimeseries, time.Duration(cfg.TimeseriesTTLMs) * time.Millisecond},
			{NamespaceActivity, time.Duration(cfg.ActivityTTLMs) * time.Millisecond},
		},
	}
}

// TTLFor returns the default TTL for a key based on its namespace
// prefix. Unmapped prefixes get the global default.
func (s *Service) TTLFor(key string) time.Duration {
	for _, p := range s.prefixTTLs {
		if strings.HasPrefix(key, p.prefix) {
			return p.ttl
		}
	}
	return s.defaultTTL
}

// Get returns the cached payload for key, or (nil, false) when absent,
// expired, disabled or failing.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	if s == nil || s.store == nil {
		return nil, false
	}
	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		return nil, false
	}
	return value, ok
}

// Set stores value under key. A zero ttl selects the namespace default.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if s == nil || s.store == nil {
		return
	}
	if ttl <= 0 {
		ttl = s.TTLFor(key)
	}
	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache set failed, skipping")
	}
}

// Delete removes a single key. Idempotent.
func (s *Service) Delete(ctx context.Context, key string) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
	}
}

// Has reports whether an unexpired entry exists for key.
func (s *Service) Has(ctx context.Context, key string) bool {
	if s == nil || s.store == nil {
		return false
	}
	ok, err := s.store.Has(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache has failed, treating as miss")
		return false
	}
	return ok
}

// ClearPattern deletes every key matching the glob pattern. Unlike the
// read/write path this reports failure, because the admin invalidation
// routes need to tell the operator when nothing was cleared.
func (s *Service) ClearPattern(ctx context.Context, pattern string) error {
	if s == nil || s.store == nil {
		return nil
	}
	if err := s.store.ClearPattern(ctx, pattern); err != nil {
		log.Error().Err(err).Str("pattern", pattern).Msg("Cache pattern clear failed")
		return err
	}
	log.Debug().Str("pattern", pattern).Msg("Cache pattern cleared")
	return nil
}

// Close shuts down the backing store.
func (s *Service) Close() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Cache close failed")
	}
}
