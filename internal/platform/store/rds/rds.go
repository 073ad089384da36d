// Package rds provides the Redis client used as the durable log (Streams)
// and shared seen-set tier for cross-instance deduplication.
package rds

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the redis connection
type Config struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RDS wraps a go-redis client
type RDS struct {
	client *redis.Client
}

// Open dials redis and verifies connectivity with a Ping
func Open(ctx context.Context, cfg Config) (*RDS, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("rds: ping: %w", err)
	}
	return &RDS{client: c}, nil
}

// Close closes the underlying client
func (r *RDS) Close() error { return r.client.Close() }

// Ping verifies connectivity
func (r *RDS) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// SAdd adds member to the set at key, returning true if it was newly added
func (r *RDS) SAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := r.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("rds: sadd: %w", err)
	}
	return n > 0, nil
}

// SIsMember reports whether member is present in the set at key
func (r *RDS) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("rds: sismember: %w", err)
	}
	return ok, nil
}

// SRem removes member from the set at key
func (r *RDS) SRem(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("rds: srem: %w", err)
	}
	return nil
}

// ZAddTimestamped adds member to the sorted set at key scored by when, used to
// age out entries from the companion seen-set after the retention window.
func (r *RDS) ZAddTimestamped(ctx context.Context, key, member string, when time.Time) error {
	err := r.client.ZAdd(ctx, key, redis.Z{Score: float64(when.Unix()), Member: member}).Err()
	if err != nil {
		return fmt.Errorf("rds: zadd: %w", err)
	}
	return nil
}

// ZRangeExpired returns members of the sorted set at key with a score older
// than cutoff, i.e. the entries due for eviction.
func (r *RDS) ZRangeExpired(ctx context.Context, key string, cutoff time.Time) ([]string, error) {
	members, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("rds: zrangebyscore: %w", err)
	}
	return members, nil
}

// ZRem removes members from the sorted set at key
func (r *RDS) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := r.client.ZRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("rds: zrem: %w", err)
	}
	return nil
}

// XAddTrimmed appends values to the stream at key, trimming approximately to
// maxLen entries (MAXLEN ~ N), and returns the assigned entry ID.
func (r *RDS) XAddTrimmed(ctx context.Context, key string, maxLen int64, values map[string]any) (string, error) {
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("rds: xadd: %w", err)
	}
	return id, nil
}
