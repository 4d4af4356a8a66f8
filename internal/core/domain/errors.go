package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the externally visible failure taxonomy.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindValidation          ErrorKind = "validation"
	KindStrategyFailed      ErrorKind = "strategy_failed"
	KindAllStrategiesFailed ErrorKind = "all_strategies_failed"
	KindArtifactInvalid     ErrorKind = "artifact_invalid"
	KindRepairFailed        ErrorKind = "repair_failed"
	KindExhausted           ErrorKind = "exhausted"
	KindCanceled            ErrorKind = "canceled"
)

var (
	// ErrValidation is returned for malformed or missing input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrStrategyFailed marks a single transformer failure. It never leaves the strategy chain.
	ErrStrategyFailed = errors.New("strategy failed")

	// ErrAllStrategiesFailed is returned when no strategy produced an artifact.
	ErrAllStrategiesFailed = errors.New("all strategies failed")

	// ErrArtifactInvalid is returned when a produced artifact fails validation.
	ErrArtifactInvalid = errors.New("artifact invalid")

	// ErrRepairFailed is returned when no repairer produced a valid artifact.
	ErrRepairFailed = errors.New("repair failed")

	// ErrExhausted is returned when the attempt budget is spent.
	ErrExhausted = errors.New("attempts exhausted")

	// ErrCanceled is returned when the caller's context ends the run.
	ErrCanceled = errors.New("run canceled")
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrCanceled, KindCanceled},
	{ErrExhausted, KindExhausted},
	{ErrValidation, KindValidation},
	{ErrRepairFailed, KindRepairFailed},
	{ErrArtifactInvalid, KindArtifactInvalid},
	{ErrAllStrategiesFailed, KindAllStrategiesFailed},
	{ErrStrategyFailed, KindStrategyFailed},
}

// KindOf maps an error onto the taxonomy. Unknown non-nil errors map to strategy_failed.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindStrategyFailed
}

// NewValidationError wraps ErrValidation with a reason such as "not-found".
func NewValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}
