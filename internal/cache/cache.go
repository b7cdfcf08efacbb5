// Package cache wraps a Redis client for the two cross-worker caches the
// crawl pipeline shares between scheduler goroutines: robots.txt results
// (internal/search, internal/extract) and URL-resolution strategy hits
// (internal/resolver). A nil *Service disables caching without requiring
// callers to nil-check first.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service handles caching operations against a shared Redis instance.
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

// NewService creates a new cache service. A nil client disables caching.
func NewService(client *redis.Client, ttl time.Duration) *Service {
	if client == nil {
		return nil
	}
	return &Service{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a value from cache.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("cache not available")
	}

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("cache miss")
	}
	if err != nil {
		return fmt.Errorf("cache error: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// Set stores a value in cache under the service's default TTL.
func (s *Service) Set(ctx context.Context, key string, value interface{}) error {
	if s == nil || s.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// SetWithTTL stores a value with an explicit TTL, overriding the service
// default (robots.txt results cache for 24h, resolver hits for a shorter
// window).
func (s *Service) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes a value from cache.
func (s *Service) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

// IsAvailable checks if the cache backend is reachable.
func (s *Service) IsAvailable() bool {
	if s == nil || s.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// GenerateKey builds a cache key from a prefix and its parts.
func GenerateKey(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		if part != "" {
			key += ":" + part
		}
	}
	return key
}

// Cache key prefixes, one per cross-worker cache the pipeline shares.
const (
	PrefixRobots   = "robots"
	PrefixResolver = "resolve"
)
