package domain

import "time"

// AttemptOutcome is the state of one pass through the orchestrator loop.
type AttemptOutcome string

const (
	AttemptPending AttemptOutcome = "pending"
	AttemptSuccess AttemptOutcome = "success"
	AttemptFailed  AttemptOutcome = "failed"
)

// Attempt records one pass through the orchestrator loop.
type Attempt struct {
	Ordinal   int            `json:"ordinal"    db:"ordinal"`
	StartedAt time.Time      `json:"started_at" db:"started_at"`
	Outcome   AttemptOutcome `json:"outcome"    db:"outcome"`
	ErrorKind ErrorKind      `json:"error_kind" db:"error_kind"`
	Detail    string         `json:"detail"     db:"detail"`
	Strategy  string         `json:"strategy"   db:"strategy"`
	Repairer  string         `json:"repairer"   db:"repairer"`
}

// BackupRecord describes a snapshot of an input artifact.
type BackupRecord struct {
	OriginalPath string    `json:"original_path" db:"original_path"`
	BackupPath   string    `json:"backup_path"   db:"backup_path"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// Empty reports whether the record points at no backup.
func (b BackupRecord) Empty() bool {
	return b.BackupPath == ""
}

// RunStatus is the ledger status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the ledger entry for one orchestrator run.
type Run struct {
	ID         string        `json:"id"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path"`
	Status     RunStatus     `json:"status"`
	ErrorKind  ErrorKind     `json:"error_kind"`
	Message    string        `json:"message"`
	Attempts   []Attempt     `json:"attempts"`
	Backup     *BackupRecord `json:"backup,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
