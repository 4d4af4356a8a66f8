package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/storage"
)

// RunRepo implements storage.RunRepository using PostgreSQL.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new PostgreSQL run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

type runRow struct {
	ID         string       `db:"id"`
	InputPath  string       `db:"input_path"`
	OutputPath string       `db:"output_path"`
	Status     string       `db:"status"`
	ErrorKind  string       `db:"error_kind"`
	Message    string       `db:"message"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func (r runRow) toDomain() *domain.Run {
	run := &domain.Run{
		ID:         r.ID,
		InputPath:  r.InputPath,
		OutputPath: r.OutputPath,
		Status:     domain.RunStatus(r.Status),
		ErrorKind:  domain.ErrorKind(r.ErrorKind),
		Message:    r.Message,
		StartedAt:  r.StartedAt,
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = r.FinishedAt.Time
	}
	return run
}

// CreateRun inserts a run in the running state.
func (r *RunRepo) CreateRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, input_path, output_path, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	status := run.Status
	if status == "" {
		status = domain.RunStatusRunning
	}
	_, err := r.db.ExecContext(ctx, query, run.ID, run.InputPath, run.OutputPath, string(status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SaveAttempt upserts an attempt keyed by run and ordinal.
func (r *RunRepo) SaveAttempt(ctx context.Context, runID string, a domain.Attempt) error {
	query := `
		INSERT INTO attempts (run_id, ordinal, started_at, outcome, error_kind, detail, strategy, repairer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, ordinal) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			error_kind = EXCLUDED.error_kind,
			detail = EXCLUDED.detail,
			strategy = EXCLUDED.strategy,
			repairer = EXCLUDED.repairer
	`
	_, err := r.db.ExecContext(ctx, query,
		runID, a.Ordinal, a.StartedAt, string(a.Outcome), string(a.ErrorKind), a.Detail, a.Strategy, a.Repairer)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

// SaveBackup records the run's backup.
func (r *RunRepo) SaveBackup(ctx context.Context, runID string, b domain.BackupRecord) error {
	query := `
		INSERT INTO backups (run_id, original_path, backup_path, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, runID, b.OriginalPath, b.BackupPath, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	return nil
}

// FinishRun stores the final state of a run.
func (r *RunRepo) FinishRun(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $2, error_kind = $3, message = $4, output_path = $5, finished_at = $6
		WHERE id = $1
	`
	return r.db.inTx(ctx, func(u *UnitOfWork) error {
		res, err := u.tx.ExecContext(ctx, query,
			run.ID, string(run.Status), string(run.ErrorKind), run.Message, run.OutputPath, run.FinishedAt)
		if err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return storage.ErrRunNotFound
		}
		// Attempts still pending when the run ends were interrupted.
		return u.Exec(ctx,
			`UPDATE attempts SET outcome = $2 WHERE run_id = $1 AND outcome = $3`,
			run.ID, string(domain.AttemptFailed), string(domain.AttemptPending))
	})
}

// GetRun returns a run with its attempts and backup.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, input_path, output_path, status, error_kind, message, started_at, finished_at
		FROM runs WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run := row.toDomain()
	if err := r.loadAttempts(ctx, run); err != nil {
		return nil, err
	}

	var backup domain.BackupRecord
	err = r.db.GetContext(ctx, &backup, `
		SELECT original_path, backup_path, created_at FROM backups WHERE run_id = $1
	`, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get backup: %w", err)
	}
	if err == nil {
		run.Backup = &backup
	}
	return run, nil
}

// ListRuns returns the most recent runs with their attempts.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, input_path, output_path, status, error_kind, message, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.Run, 0, len(rows))
	for _, row := range rows {
		run := row.toDomain()
		if err := r.loadAttempts(ctx, run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListBackups returns the most recent backups.
func (r *RunRepo) ListBackups(ctx context.Context, limit int) ([]domain.BackupRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var backups []domain.BackupRecord
	err := r.db.SelectContext(ctx, &backups, `
		SELECT original_path, backup_path, created_at
		FROM backups
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return backups, nil
}

func (r *RunRepo) loadAttempts(ctx context.Context, run *domain.Run) error {
	err := r.db.SelectContext(ctx, &run.Attempts, `
		SELECT ordinal, started_at, outcome, error_kind, detail, strategy, repairer
		FROM attempts
		WHERE run_id = $1
		ORDER BY ordinal
	`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load attempts: %w", err)
	}
	return nil
}
