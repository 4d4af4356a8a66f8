package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/sheetfix/internal/core/domain"
)

// DefaultPrefix namespaces every key written by the client.
const DefaultPrefix = "sheetfix"

// Client wraps Redis operations for watch mode: the job queue, per-file
// processing locks and the failed job list.
type Client struct {
	rdb             *redis.Client
	prefix          string
	failedRetention time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL             string        `yaml:"url"`
	Password        string        `yaml:"password"`
	Prefix          string        `yaml:"prefix"`
	FailedRetention time.Duration `yaml:"failed_retention"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	retention := cfg.FailedRetention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Client{rdb: rdb, prefix: prefix, failedRetention: retention}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func (c *Client) queueKey() string {
	return c.prefix + ":jobs"
}

// queuedKey holds the paths currently waiting in the queue.
func (c *Client) queuedKey() string {
	return c.prefix + ":queued"
}

func (c *Client) lockKey(key string) string {
	return c.prefix + ":processing:" + key
}

// Push adds a job to the queue, scored by enqueue time. A path that is
// already waiting is not queued twice.
func (c *Client) Push(ctx context.Context, job domain.Job) error {
	enqueued := job.EnqueuedAt
	if enqueued.IsZero() {
		enqueued = time.Now()
	}
	added, err := c.rdb.SAdd(ctx, c.queuedKey(), job.Path).Result()
	if err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	if added == 0 {
		return nil
	}
	member := FormatJobMember(job.ID, job.Path)
	if err := c.rdb.ZAdd(ctx, c.queueKey(), redis.Z{Score: float64(enqueued.UnixMilli()), Member: member}).Err(); err != nil {
		c.rdb.SRem(context.WithoutCancel(ctx), c.queuedKey(), job.Path)
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Pop removes the oldest job (lowest score) from the queue.
func (c *Client) Pop(ctx context.Context) (*domain.Job, error) {
	results, err := c.rdb.ZPopMin(ctx, c.queueKey(), 1).Result()
	if err != nil {
		return nil, fmt.Errorf("zpopmin failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	member, ok := results[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected queue member %v", results[0].Member)
	}
	id, path, err := ParseJobMember(member)
	if err != nil {
		return nil, fmt.Errorf("invalid queue member: %w", err)
	}
	if err := c.rdb.SRem(ctx, c.queuedKey(), path).Err(); err != nil {
		return nil, fmt.Errorf("srem failed: %w", err)
	}
	return &domain.Job{
		ID:         id,
		Path:       path,
		EnqueuedAt: time.UnixMilli(int64(results[0].Score)),
	}, nil
}

// Len returns the number of queued jobs.
func (c *Client) Len(ctx context.Context) (int64, error) {
	n, err := c.rdb.ZCard(ctx, c.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}

// AcquireLock attempts to acquire a processing lock.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, c.lockKey(key), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseLock releases a processing lock.
func (c *Client) ReleaseLock(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.lockKey(key)).Err()
}

// RefreshLock extends the TTL of a lock.
func (c *Client) RefreshLock(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, c.lockKey(key), ttl).Err()
}

// FormatJobMember encodes a job as "id|path".
func FormatJobMember(id, path string) string {
	return id + "|" + path
}

// ParseJobMember parses "id|path" format. The path may itself contain "|".
func ParseJobMember(s string) (id, path string, err error) {
	id, path, ok := strings.Cut(s, "|")
	if !ok {
		return "", "", fmt.Errorf("invalid job format: %s", s)
	}
	if id == "" {
		return "", "", fmt.Errorf("missing job id: %s", s)
	}
	if path == "" {
		return "", "", fmt.Errorf("missing job path: %s", s)
	}
	return id, path, nil
}
