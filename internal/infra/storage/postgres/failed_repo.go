package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
)

// FailedJobRepo implements storage.FailedJobRepository using PostgreSQL.
type FailedJobRepo struct {
	db *DB
}

// NewFailedJobRepo creates a new PostgreSQL failed job repository.
func NewFailedJobRepo(db *DB) *FailedJobRepo {
	return &FailedJobRepo{db: db}
}

// AddFailed stores a failed job.
func (r *FailedJobRepo) AddFailed(ctx context.Context, fj *domain.FailedJob) error {
	query := `
		INSERT INTO failed_jobs (job_id, path, enqueued_at, run_id, error_kind, error_msg, attempts, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	failedAt := fj.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now()
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		fj.Job.ID,
		fj.Job.Path,
		fj.Job.EnqueuedAt,
		fj.RunID,
		string(fj.ErrorKind),
		fj.Error,
		fj.Attempts,
		failedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add failed job: %w", err)
	}
	return nil
}

// ListFailed returns the most recent failed jobs.
func (r *FailedJobRepo) ListFailed(ctx context.Context, limit int) ([]*domain.FailedJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT job_id, path, enqueued_at, run_id, error_kind, error_msg, attempts, failed_at
		FROM failed_jobs
		ORDER BY failed_at DESC
		LIMIT $1
	`

	var rows []struct {
		JobID      string    `db:"job_id"`
		Path       string    `db:"path"`
		EnqueuedAt time.Time `db:"enqueued_at"`
		RunID      string    `db:"run_id"`
		ErrorKind  string    `db:"error_kind"`
		ErrorMsg   string    `db:"error_msg"`
		Attempts   int       `db:"attempts"`
		FailedAt   time.Time `db:"failed_at"`
	}

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", err)
	}

	jobs := make([]*domain.FailedJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, &domain.FailedJob{
			Job:       domain.Job{ID: row.JobID, Path: row.Path, EnqueuedAt: row.EnqueuedAt},
			RunID:     row.RunID,
			ErrorKind: domain.ErrorKind(row.ErrorKind),
			Error:     row.ErrorMsg,
			Attempts:  row.Attempts,
			FailedAt:  row.FailedAt,
		})
	}
	return jobs, nil
}

// CountFailed returns the number of failed jobs.
func (r *FailedJobRepo) CountFailed(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failed_jobs`); err != nil {
		return 0, fmt.Errorf("failed to count failed jobs: %w", err)
	}
	return count, nil
}
