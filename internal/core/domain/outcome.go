package domain

// ValidationResult is produced fresh by every validator call.
type ValidationResult struct {
	Valid      bool
	Reason     string
	SheetCount *int
}

// Invalid builds a failing result.
func Invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}

// ProcessingOutcome is the only value returned to callers of the pipeline.
type ProcessingOutcome struct {
	Success      bool      `json:"success"`
	OutputPath   string    `json:"output_path,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	Message      string    `json:"message"`
	RunID        string    `json:"run_id,omitempty"`
	Attempts     int       `json:"attempts"`
	Repaired     bool      `json:"repaired"`
	RestoredFrom string    `json:"restored_from,omitempty"`
}

// ExitCode maps the outcome onto a process exit code.
func (o ProcessingOutcome) ExitCode() int {
	if o.Success {
		return 0
	}
	return 1
}
