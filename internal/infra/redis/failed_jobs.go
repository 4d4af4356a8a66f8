package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/sheetfix/internal/core/domain"
)

func (c *Client) failedIndexKey() string {
	return c.prefix + ":failed_jobs"
}

func (c *Client) failedKey(id string) string {
	return c.prefix + ":failed_job:" + id
}

// AddFailed stores a failed job and indexes it by failure time.
func (c *Client) AddFailed(ctx context.Context, fj *domain.FailedJob) error {
	if fj.FailedAt.IsZero() {
		fj.FailedAt = time.Now()
	}
	id := fj.Job.ID
	if id == "" {
		id = uuid.NewString()
	}

	data, err := json.Marshal(fj)
	if err != nil {
		return fmt.Errorf("failed to marshal failed job: %w", err)
	}

	if err := c.rdb.Set(ctx, c.failedKey(id), data, c.failedRetention).Err(); err != nil {
		return fmt.Errorf("failed to set failed job: %w", err)
	}

	if err := c.rdb.ZAdd(ctx, c.failedIndexKey(), redis.Z{
		Score:  float64(fj.FailedAt.UnixMilli()),
		Member: id,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index failed job: %w", err)
	}
	return nil
}

// ListFailed returns the most recent failed jobs. Expired entries are
// dropped from the index.
func (c *Client) ListFailed(ctx context.Context, limit int) ([]*domain.FailedJob, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := c.rdb.ZRevRange(ctx, c.failedIndexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	jobs := make([]*domain.FailedJob, 0, len(ids))
	for _, id := range ids {
		data, err := c.rdb.Get(ctx, c.failedKey(id)).Bytes()
		if err == redis.Nil {
			c.rdb.ZRem(ctx, c.failedIndexKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed job: %w", err)
		}

		var fj domain.FailedJob
		if err := json.Unmarshal(data, &fj); err != nil {
			continue
		}
		jobs = append(jobs, &fj)
	}
	return jobs, nil
}

// CountFailed returns the number of indexed failed jobs.
func (c *Client) CountFailed(ctx context.Context) (int64, error) {
	n, err := c.rdb.ZCard(ctx, c.failedIndexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}
