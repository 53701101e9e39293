// Package cache keeps short-lived lecture status snapshots.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lecture-pipeline/cache")

const DefaultTTL = 5 * time.Minute

// StatusCache stores encoded status views by lecture id. A miss returns
// (nil, false, nil).
type StatusCache interface {
	Get(ctx context.Context, lectureID string) ([]byte, bool, error)
	Set(ctx context.Context, lectureID string, data []byte) error
	Invalidate(ctx context.Context, lectureID string) error
}

func statusKey(lectureID string) string {
	return fmt.Sprintf("lecture:status:%s", lectureID)
}

type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }
func (Noop) Invalidate(context.Context, string) error          { return nil }

type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatusCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStatusCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStatusCache{client: client, ttl: ttl}, nil
}

func (c *RedisStatusCache) Close() error {
	return c.client.Close()
}

func (c *RedisStatusCache) Get(ctx context.Context, lectureID string) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.get_status", trace.WithAttributes(
		attribute.String("lecture_id", lectureID),
	))
	defer span.End()

	data, err := c.client.Get(ctx, statusKey(lectureID)).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache_hit", false))
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache_hit", true))
	return data, true, nil
}

func (c *RedisStatusCache) Set(ctx context.Context, lectureID string, data []byte) error {
	ctx, span := tracer.Start(ctx, "redis.set_status", trace.WithAttributes(
		attribute.String("lecture_id", lectureID),
		attribute.Int("size_bytes", len(data)),
	))
	defer span.End()

	if err := c.client.Set(ctx, statusKey(lectureID), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, lectureID string) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate_status", trace.WithAttributes(
		attribute.String("lecture_id", lectureID),
	))
	defer span.End()

	if err := c.client.Del(ctx, statusKey(lectureID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}
