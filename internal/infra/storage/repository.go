package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
)

var (
	// ErrRunNotFound is returned when a run doesn't exist
	ErrRunNotFound = errors.New("run not found")
)

// RunRepository is the ledger of orchestrator runs
type RunRepository interface {
	// CreateRun stores a new run in the running state
	CreateRun(ctx context.Context, run *domain.Run) error

	// SaveAttempt records a finished attempt of a run
	SaveAttempt(ctx context.Context, runID string, attempt domain.Attempt) error

	// SaveBackup records the backup taken for a run
	SaveBackup(ctx context.Context, runID string, backup domain.BackupRecord) error

	// FinishRun stores the final status, error kind, message, output path and finish time
	FinishRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a run with its attempts
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)

	// ListBackups returns the most recent backups first
	ListBackups(ctx context.Context, limit int) ([]domain.BackupRecord, error)
}

// JobQueue holds inputs waiting to be processed in watch mode
type JobQueue interface {
	// Push enqueues a job
	Push(ctx context.Context, job domain.Job) error

	// Pop removes the oldest job. It returns nil when the queue is empty
	Pop(ctx context.Context) (*domain.Job, error)

	// Len returns the number of queued jobs
	Len(ctx context.Context) (int64, error)
}

// Locker guards an input path against concurrent processing
type Locker interface {
	// AcquireLock returns false when the key is already locked
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseLock releases a lock
	ReleaseLock(ctx context.Context, key string) error

	// RefreshLock extends a held lock to ttl from now. A missing or
	// expired lock is left alone
	RefreshLock(ctx context.Context, key string, ttl time.Duration) error
}

// FailedJobRepository keeps jobs whose run ended without success
type FailedJobRepository interface {
	// AddFailed stores a failed job
	AddFailed(ctx context.Context, job *domain.FailedJob) error

	// ListFailed returns the most recent failed jobs first
	ListFailed(ctx context.Context, limit int) ([]*domain.FailedJob, error)

	// CountFailed returns the number of failed jobs
	CountFailed(ctx context.Context) (int64, error)
}
