package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service wraps Redis for the two things the pipeline needs: a read
// cache for assessments and per-customer velocity counters.
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

// NewService creates a cache service with a default TTL.
func NewService(client *redis.Client, defaultTTL time.Duration) *Service {
	return &Service{client: client, ttl: defaultTTL}
}

// Set stores a JSON-encoded value under the default TTL.
func (s *Service) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// Get loads a JSON-encoded value into dest. The boolean reports a hit.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// Delete removes a key.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// IncrVelocity bumps the customer's transaction counter and returns the
// new count. The key expires after the window, which approximates a
// sliding frequency window cheaply enough for the velocity rule.
func (s *Service) IncrVelocity(ctx context.Context, customerID string, window time.Duration) (int64, error) {
	key := velocityKey(customerID)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment velocity counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to set velocity window: %w", err)
		}
	}
	return count, nil
}

// HealthCheck pings Redis.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Service) Close() error {
	return s.client.Close()
}

func velocityKey(customerID string) string {
	return fmt.Sprintf("velocity:%s", customerID)
}

// AssessmentKey is the cache key for a persisted assessment.
func AssessmentKey(txID string) string {
	return fmt.Sprintf("assessment:%s", txID)
}
