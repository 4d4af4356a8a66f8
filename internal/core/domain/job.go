package domain

import "time"

// Job is a queued request to process one input workbook in watch mode.
type Job struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// FailedJob is a job whose run ended without success. Failed jobs are kept
// for inspection and are never retried automatically.
type FailedJob struct {
	Job       Job       `json:"job"`
	RunID     string    `json:"run_id"`
	ErrorKind ErrorKind `json:"error_kind"`
	Error     string    `json:"error_msg"`
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
}
