package automation

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ErrorAction determines how to handle an automation error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionRestart
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionRestart:
		return "restart"
	case ActionFatal:
		return "fatal"
	}
	return "unknown"
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, exec.ErrNotFound) {
		return ActionFatal
	}
	// Headless conversions exit 0 without output when another session owns the profile.
	if errors.Is(err, ErrNoOutput) {
		return ActionRestart
	}

	s := strings.ToLower(err.Error())

	// Input or installation issues; the same call will fail again.
	if strings.Contains(s, "source file could not be loaded") ||
		strings.Contains(s, "no such file") ||
		strings.Contains(s, "executable file not found") ||
		strings.Contains(s, "no export filter") ||
		strings.Contains(s, "unsupported") {
		return ActionFatal
	}

	// A stale session holds the profile or the file.
	if strings.Contains(s, "user installation could not be completed") ||
		strings.Contains(s, "already running") ||
		strings.Contains(s, "lock") ||
		strings.Contains(s, "in use") ||
		strings.Contains(s, "being used by another process") {
		return ActionRestart
	}

	// Permission blips, timeouts, crashes.
	return ActionRetry
}
