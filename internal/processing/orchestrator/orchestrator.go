// Package orchestrator drives one workbook through backup, the strategy
// chain, validation, the repair chain and the bounded retry loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/infra/storage"
	"github.com/vietddude/sheetfix/internal/processing/backup"
	"github.com/vietddude/sheetfix/internal/processing/metrics"
	"github.com/vietddude/sheetfix/internal/processing/progress"
	"github.com/vietddude/sheetfix/internal/processing/repair"
	"github.com/vietddude/sheetfix/internal/processing/strategy"
)

// Strategies produces a structurally sound artifact at output.
type Strategies interface {
	Run(ctx context.Context, input, output string, params domain.TransformParams) strategy.Result
}

// Repairs produces an accepted repaired candidate.
type Repairs interface {
	Run(ctx context.Context, path string, params domain.TransformParams, accept repair.Acceptor) repair.Result
}

// Guard resets automation sessions and temp files between attempts.
type Guard interface {
	Reset(ctx context.Context)
}

// Checker validates an artifact.
type Checker interface {
	Check(ctx context.Context, path string) domain.ValidationResult
}

// CheckerFactory builds the validator for a run's params.
type CheckerFactory func(params domain.TransformParams) Checker

// Orchestrator runs the pipeline. It holds no per-run state and may be reused
// for sequential runs.
type Orchestrator struct {
	strategies Strategies
	repairs    Repairs
	guard      Guard
	checker    CheckerFactory
	runs       storage.RunRepository
	backoff    Backoff
	sleep      Sleeper
	now        func() time.Time
	newID      func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunRepository records runs, attempts and backups in repo.
func WithRunRepository(repo storage.RunRepository) Option {
	return func(o *Orchestrator) { o.runs = repo }
}

// WithBackoff replaces the default linear backoff.
func WithBackoff(b Backoff) Option {
	return func(o *Orchestrator) { o.backoff = b }
}

// WithSleeper replaces the context-aware sleep used between attempts.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithClock overrides the clock used for output and backup names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// New creates an orchestrator.
func New(strategies Strategies, repairs Repairs, guard Guard, checker CheckerFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		strategies: strategies,
		repairs:    repairs,
		guard:      guard,
		checker:    checker,
		backoff:    DefaultBackoff(),
		sleep:      sleepCtx,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes input and reports through sink. Exactly one success or error
// event is emitted. The returned outcome is the only result of the run.
func (o *Orchestrator) Run(ctx context.Context, input string, params domain.TransformParams, sink progress.Sink) domain.ProcessingOutcome {
	if sink == nil {
		sink = progress.Nop
	}
	start := o.now()
	runID := o.newID()
	log := slog.With("run_id", runID, "input", input)

	if err := ValidateInput(input); err != nil {
		return o.reject(sink, runID, err)
	}
	if err := params.Validate(); err != nil {
		return o.reject(sink, runID, err)
	}
	params = params.Clone()

	// Later cleanup must still run after the caller cancels.
	bg := context.WithoutCancel(ctx)
	defer o.guard.Reset(bg)

	// Earlier runs keep their outputs; every attempt of this run targets one slot.
	output, err := FreeOutputPath(params.OutputDirectory, input, start)
	run := &domain.Run{ID: runID, InputPath: input, OutputPath: output, Status: domain.RunStatusRunning, StartedAt: start}
	o.record(bg, "create run", func(ctx context.Context) error { return o.runs.CreateRun(ctx, run) })
	if err != nil {
		return o.finish(bg, sink, run, start, 0, false, "", err)
	}

	sink.Emit(domain.ProgressEvent(0, "Starting "+input))
	log.Info("Processing started", "output", output, "max_attempts", params.MaxAttempts)

	if err := os.MkdirAll(params.OutputDirectory, 0o755); err != nil {
		err = fmt.Errorf("failed to create output directory: %w", err)
		return o.finish(bg, sink, run, start, 0, false, "", err)
	}

	backups := backup.NewManager(BackupDir(params)).WithClock(o.now)
	record, err := backups.Snapshot(input)
	if err != nil {
		log.Warn("Backup failed, continuing without one", "error", err)
		metrics.BackupFailures.Inc()
		sink.Emit(domain.WarningEvent(fmt.Sprintf("Backup failed: %v", err)))
	} else {
		o.record(bg, "save backup", func(ctx context.Context) error { return o.runs.SaveBackup(ctx, runID, record) })
		sink.Emit(domain.StatusEvent("Backup created at " + record.BackupPath))
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= params.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrCanceled, err)
			break
		}
		attempts = attempt

		a := domain.Attempt{Ordinal: attempt, StartedAt: o.now(), Outcome: domain.AttemptPending}
		o.record(bg, "save attempt", func(ctx context.Context) error { return o.runs.SaveAttempt(ctx, runID, a) })
		sink.Emit(domain.ProgressEvent(progressFor(attempt, params.MaxAttempts),
			fmt.Sprintf("Attempt %d of %d", attempt, params.MaxAttempts)))

		o.guard.Reset(ctx)
		repaired, err := o.attempt(ctx, input, output, params, sink, &a)
		if err == nil {
			a.Outcome = domain.AttemptSuccess
			o.record(bg, "save attempt", func(ctx context.Context) error { return o.runs.SaveAttempt(ctx, runID, a) })
			metrics.AttemptsTotal.WithLabelValues(string(domain.AttemptSuccess)).Inc()

			if repaired {
				sink.Emit(domain.WarningEvent(fmt.Sprintf("Workbook was repaired with %s", a.Repairer)))
			}
			return o.finish(bg, sink, run, start, attempt, repaired, "", nil)
		}

		a.Outcome = domain.AttemptFailed
		a.ErrorKind = domain.KindOf(err)
		a.Detail = err.Error()
		o.record(bg, "save attempt", func(ctx context.Context) error { return o.runs.SaveAttempt(ctx, runID, a) })
		metrics.AttemptsTotal.WithLabelValues(string(domain.AttemptFailed)).Inc()
		log.Warn("Attempt failed", "attempt", attempt, "error_kind", a.ErrorKind, "error", err)
		lastErr = err

		if errors.Is(err, domain.ErrCanceled) {
			break
		}
		if attempt < params.MaxAttempts {
			o.guard.Reset(ctx)
			delay := o.backoff.GetDelay(attempt)
			sink.Emit(domain.StatusEvent(fmt.Sprintf("Retrying in %s", delay)))
			if err := o.sleep(ctx, delay); err != nil {
				lastErr = fmt.Errorf("%w: %v", domain.ErrCanceled, err)
				break
			}
		}
	}

	final := lastErr
	if !errors.Is(lastErr, domain.ErrCanceled) {
		final = fmt.Errorf("%w after %d attempts: %v", domain.ErrExhausted, attempts, lastErr)
	}
	restored := o.restore(backups, record, output, log)
	return o.finish(bg, sink, run, start, attempts, false, restored, final)
}

// attempt runs one pass: strategies, validation and, when validation fails,
// the repair chain. It reports whether the result came from a repair.
func (o *Orchestrator) attempt(ctx context.Context, input, output string, params domain.TransformParams, sink progress.Sink, a *domain.Attempt) (bool, error) {
	res := o.strategies.Run(ctx, input, output, params)
	if !res.StructurallyOK {
		return false, res.Err
	}
	a.Strategy = res.Strategy.Name
	sink.Emit(domain.StatusEvent(fmt.Sprintf("Transformed with %s", res.Strategy.Name)))

	checker := o.checker(params)
	vr := checker.Check(ctx, output)
	if vr.Valid {
		return false, nil
	}

	slog.Warn("Artifact failed validation, repairing", "strategy", res.Strategy.Name, "reason", vr.Reason)
	sink.Emit(domain.StatusEvent("Validation failed: " + vr.Reason + "; attempting repair"))

	rep := o.repairs.Run(ctx, output, params, checker.Check)
	if !rep.OK {
		return false, fmt.Errorf("artifact invalid (%s): %w", vr.Reason, rep.Err)
	}
	if err := files.Move(rep.Path, output); err != nil {
		return false, fmt.Errorf("%w: failed to promote repaired artifact: %v", domain.ErrArtifactInvalid, err)
	}
	a.Repairer = rep.Repairer.Name
	return true, nil
}

// restore copies the backup into the output slot. Without a backup, an
// unvalidated artifact left in the slot is removed.
func (o *Orchestrator) restore(backups *backup.Manager, record domain.BackupRecord, output string, log *slog.Logger) string {
	if record.Empty() {
		if err := os.Remove(output); err == nil {
			log.Info("Removed unvalidated output", "output", output)
		}
		return ""
	}
	if err := backups.Restore(record, output); err != nil {
		log.Error("Failed to restore backup", "backup", record.BackupPath, "error", err)
		metrics.RestoresTotal.WithLabelValues("failed").Inc()
		return ""
	}
	metrics.RestoresTotal.WithLabelValues("succeeded").Inc()
	return record.BackupPath
}

// finish emits the single terminal event, closes the ledger entry and builds the outcome.
func (o *Orchestrator) finish(ctx context.Context, sink progress.Sink, run *domain.Run, start time.Time, attempts int, repaired bool, restoredFrom string, err error) domain.ProcessingOutcome {
	out := domain.ProcessingOutcome{
		RunID:        run.ID,
		Attempts:     attempts,
		Repaired:     repaired,
		RestoredFrom: restoredFrom,
	}

	if err == nil {
		out.Success = true
		out.OutputPath = run.OutputPath
		out.Message = "Output saved to " + run.OutputPath
		run.Status = domain.RunStatusSucceeded
		sink.Emit(domain.SuccessEvent(run.OutputPath))
		slog.Info("Processing succeeded", "run_id", run.ID, "output", run.OutputPath, "attempts", attempts, "repaired", repaired)
	} else {
		out.ErrorKind = domain.KindOf(err)
		out.Message = err.Error()
		if restoredFrom != "" {
			out.OutputPath = run.OutputPath
			out.Message += "; original restored from " + restoredFrom
		} else {
			run.OutputPath = ""
		}
		run.Status = domain.RunStatusFailed
		run.ErrorKind = out.ErrorKind
		sink.Emit(domain.ErrorEvent(out.Message))
		slog.Error("Processing failed", "run_id", run.ID, "error_kind", out.ErrorKind, "error", err)
	}

	run.Message = out.Message
	run.FinishedAt = o.now()
	o.record(ctx, "finish run", func(ctx context.Context) error { return o.runs.FinishRun(ctx, run) })

	metrics.RunsTotal.WithLabelValues(runResult(out.Success), string(out.ErrorKind)).Inc()
	metrics.RunDuration.Observe(run.FinishedAt.Sub(start).Seconds())
	return out
}

// reject ends a run that failed input validation. Nothing was touched yet.
func (o *Orchestrator) reject(sink progress.Sink, runID string, err error) domain.ProcessingOutcome {
	slog.Warn("Input rejected", "run_id", runID, "error", err)
	sink.Emit(domain.ErrorEvent(err.Error()))
	metrics.RunsTotal.WithLabelValues(runResult(false), string(domain.KindValidation)).Inc()
	return domain.ProcessingOutcome{
		RunID:     runID,
		ErrorKind: domain.KindOf(err),
		Message:   err.Error(),
	}
}

// record writes to the run ledger. Failures are logged and never fail the run.
func (o *Orchestrator) record(ctx context.Context, what string, fn func(ctx context.Context) error) {
	if o.runs == nil {
		return
	}
	if err := fn(ctx); err != nil {
		slog.Warn("Failed to record run", "op", what, "error", err)
	}
}

func progressFor(attempt, max int) float64 {
	return 10 + 80*float64(attempt-1)/float64(max)
}

func runResult(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
