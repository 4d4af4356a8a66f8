package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/storage"
)

type MemoryStorage struct {
	runs    map[string]*domain.Run
	backups []domain.BackupRecord
	jobs    []domain.Job
	locks   map[string]time.Time
	failed  []*domain.FailedJob
	now     func() time.Time
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		runs:  make(map[string]*domain.Run),
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// -----------------------------------------------------------------------------
// Run Repository
// -----------------------------------------------------------------------------

type RunRepo struct {
	store *MemoryStorage
}

func NewRunRepo(store *MemoryStorage) *RunRepo {
	return &RunRepo{store: store}
}

func (r *RunRepo) CreateRun(ctx context.Context, run *domain.Run) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	cp := *run
	cp.Attempts = append([]domain.Attempt(nil), run.Attempts...)
	if cp.Status == "" {
		cp.Status = domain.RunStatusRunning
	}
	r.store.runs[run.ID] = &cp
	return nil
}

func (r *RunRepo) SaveAttempt(ctx context.Context, runID string, attempt domain.Attempt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	run, ok := r.store.runs[runID]
	if !ok {
		return storage.ErrRunNotFound
	}
	for i, a := range run.Attempts {
		if a.Ordinal == attempt.Ordinal {
			run.Attempts[i] = attempt
			return nil
		}
	}
	run.Attempts = append(run.Attempts, attempt)
	return nil
}

func (r *RunRepo) SaveBackup(ctx context.Context, runID string, backup domain.BackupRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	run, ok := r.store.runs[runID]
	if !ok {
		return storage.ErrRunNotFound
	}
	b := backup
	run.Backup = &b
	r.store.backups = append(r.store.backups, backup)
	return nil
}

func (r *RunRepo) FinishRun(ctx context.Context, run *domain.Run) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.runs[run.ID]
	if !ok {
		return storage.ErrRunNotFound
	}
	stored.Status = run.Status
	stored.ErrorKind = run.ErrorKind
	stored.Message = run.Message
	stored.OutputPath = run.OutputPath
	stored.FinishedAt = run.FinishedAt
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	run, ok := r.store.runs[id]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	return copyRun(run), nil
}

func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Run, 0, len(r.store.runs))
	for _, run := range r.store.runs {
		out = append(out, copyRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RunRepo) ListBackups(ctx context.Context, limit int) ([]domain.BackupRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.BackupRecord
	for i := len(r.store.backups) - 1; i >= 0; i-- {
		out = append(out, r.store.backups[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func copyRun(run *domain.Run) *domain.Run {
	cp := *run
	cp.Attempts = append([]domain.Attempt(nil), run.Attempts...)
	if run.Backup != nil {
		b := *run.Backup
		cp.Backup = &b
	}
	return &cp
}

// -----------------------------------------------------------------------------
// Job Queue, Locks and Failed Jobs
// -----------------------------------------------------------------------------

type Queue struct {
	store *MemoryStorage
}

func NewQueue(store *MemoryStorage) *Queue {
	return &Queue{store: store}
}

func (q *Queue) Push(ctx context.Context, job domain.Job) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	for _, j := range q.store.jobs {
		if j.Path == job.Path {
			return nil
		}
	}
	q.store.jobs = append(q.store.jobs, job)
	return nil
}

func (q *Queue) Pop(ctx context.Context) (*domain.Job, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	if len(q.store.jobs) == 0 {
		return nil, nil
	}
	job := q.store.jobs[0]
	q.store.jobs = q.store.jobs[1:]
	return &job, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()
	return int64(len(q.store.jobs)), nil
}

func (q *Queue) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	now := q.store.now()
	if exp, ok := q.store.locks[key]; ok && now.Before(exp) {
		return false, nil
	}
	q.store.locks[key] = now.Add(ttl)
	return true, nil
}

func (q *Queue) ReleaseLock(ctx context.Context, key string) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	delete(q.store.locks, key)
	return nil
}

func (q *Queue) RefreshLock(ctx context.Context, key string, ttl time.Duration) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	now := q.store.now()
	if exp, ok := q.store.locks[key]; ok && now.Before(exp) {
		q.store.locks[key] = now.Add(ttl)
	}
	return nil
}

func (q *Queue) AddFailed(ctx context.Context, job *domain.FailedJob) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	cp := *job
	q.store.failed = append(q.store.failed, &cp)
	return nil
}

func (q *Queue) ListFailed(ctx context.Context, limit int) ([]*domain.FailedJob, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()
	var out []*domain.FailedJob
	for i := len(q.store.failed) - 1; i >= 0; i-- {
		cp := *q.store.failed[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *Queue) CountFailed(ctx context.Context) (int64, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()
	return int64(len(q.store.failed)), nil
}
