package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/storage"
	"github.com/vietddude/sheetfix/internal/processing/metrics"
	"github.com/vietddude/sheetfix/internal/processing/progress"
)

// Processor runs the pipeline for one input.
type Processor interface {
	Run(ctx context.Context, input string, params domain.TransformParams, sink progress.Sink) domain.ProcessingOutcome
}

// WorkerConfig holds configuration for the job worker.
type WorkerConfig struct {
	PollInterval time.Duration // Sleep when queue empty (default: 1s)
	LockTTL      time.Duration // Per-file lock TTL, refreshed every LockTTL/2 during a run (default: 10m)
}

// Worker pops jobs and runs them one at a time. Failed jobs are recorded
// and never re-queued.
type Worker struct {
	cfg       WorkerConfig
	queue     storage.JobQueue
	locker    storage.Locker
	failed    storage.FailedJobRepository
	processor Processor
	params    domain.TransformParams
	sink      progress.Sink
	sleep     func(ctx context.Context, d time.Duration)
	now       func() time.Time
	log       *slog.Logger
}

// NewWorker creates a new job worker. sink receives every run's events and may be nil.
func NewWorker(
	cfg WorkerConfig,
	queue storage.JobQueue,
	locker storage.Locker,
	failed storage.FailedJobRepository,
	processor Processor,
	params domain.TransformParams,
	sink progress.Sink,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if sink == nil {
		sink = progress.Nop
	}
	return &Worker{
		cfg:       cfg,
		queue:     queue,
		locker:    locker,
		failed:    failed,
		processor: processor,
		params:    params.Clone(),
		sink:      sink,
		sleep:     pause,
		now:       time.Now,
		log:       slog.Default().With("component", "worker"),
	}
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Job worker stopped")
			return nil
		default:
		}

		processed, err := w.Next(ctx)
		if err != nil {
			w.log.Error("Failed to pop job", "error", err)
		}
		if !processed {
			w.sleep(ctx, w.cfg.PollInterval)
		}
	}
}

// Next processes at most one job. It reports whether a job was taken.
func (w *Worker) Next(ctx context.Context) (bool, error) {
	job, err := w.queue.Pop(ctx)
	if err != nil || job == nil {
		return false, err
	}
	if depth, err := w.queue.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	lockKey := "job:" + job.Path
	locked, err := w.locker.AcquireLock(ctx, lockKey, w.cfg.LockTTL)
	if err != nil {
		return true, err
	}
	if !locked {
		w.log.Debug("File already locked by another worker", "path", job.Path)
		metrics.JobsTotal.WithLabelValues("skipped").Inc()
		return true, nil
	}
	defer func() {
		if err := w.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
			w.log.Warn("Failed to release lock", "path", job.Path, "error", err)
		}
	}()
	stop := w.keepLock(ctx, lockKey)
	defer stop()

	w.log.Info("Processing job", "job", job.ID, "path", job.Path)
	outcome := w.processor.Run(ctx, job.Path, w.params, w.sink)
	if outcome.Success {
		metrics.JobsTotal.WithLabelValues("succeeded").Inc()
		w.log.Info("Job completed", "job", job.ID, "output", outcome.OutputPath)
		return true, nil
	}

	metrics.JobsTotal.WithLabelValues("failed").Inc()
	failed := &domain.FailedJob{
		Job:       *job,
		RunID:     outcome.RunID,
		ErrorKind: outcome.ErrorKind,
		Error:     outcome.Message,
		Attempts:  outcome.Attempts,
		FailedAt:  w.now(),
	}
	if err := w.failed.AddFailed(context.WithoutCancel(ctx), failed); err != nil {
		w.log.Error("Failed to record failed job", "job", job.ID, "error", err)
	}
	w.log.Warn("Job failed", "job", job.ID, "kind", outcome.ErrorKind, "error", outcome.Message)
	return true, nil
}

// keepLock refreshes key until the returned stop func is called, so runs
// longer than LockTTL stay exclusive.
func (w *Worker) keepLock(ctx context.Context, key string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(w.cfg.LockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.locker.RefreshLock(ctx, key, w.cfg.LockTTL); err != nil {
					w.log.Warn("Failed to refresh lock", "key", key, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
