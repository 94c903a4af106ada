package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// NewRedisClient connects to the Redis instance at url (redis://...).
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisWindowCounter keeps one sorted set per key, scored by event time in
// milliseconds, so every API instance sees the same rate counters.
type RedisWindowCounter struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisWindowCounter creates a counter that keeps events for retention.
func NewRedisWindowCounter(client *redis.Client, retention time.Duration) *RedisWindowCounter {
	return &RedisWindowCounter{client: client, retention: retention}
}

// Record adds an event and trims entries older than the retention window in
// one MULTI/EXEC round trip.
func (c *RedisWindowCounter) Record(ctx context.Context, key string, at time.Time) error {
	score := at.UnixMilli()
	cutoff := at.Add(-c.retention).UnixMilli()

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, &redis.Z{
			Score:  float64(score),
			Member: strconv.FormatInt(score, 10) + ":" + uuid.NewString(),
		})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.Expire(ctx, key, c.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	return nil
}

// Count returns the number of events strictly after since.
func (c *RedisWindowCounter) Count(ctx context.Context, key string, since time.Time) (int, error) {
	n, err := c.client.ZCount(ctx, key, "("+strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", key, err)
	}
	return int(n), nil
}
