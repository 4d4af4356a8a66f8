package automation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ProcessTerminator kills lingering suite processes: a graceful signal first,
// then the platform's forced kill.
type ProcessTerminator struct {
	names  []string
	grace  time.Duration
	runner CommandRunner
	goos   string
}

// NewProcessTerminator creates a terminator for the given process names.
func NewProcessTerminator(names []string, grace time.Duration, runner CommandRunner) *ProcessTerminator {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &ProcessTerminator{
		names:  names,
		grace:  grace,
		runner: runner,
		goos:   runtime.GOOS,
	}
}

func (t *ProcessTerminator) Name() string {
	return "office-processes"
}

// Terminate stops every matching process. Finding none is not an error.
func (t *ProcessTerminator) Terminate(ctx context.Context) error {
	found, err := t.signal(ctx, false)
	if err != nil || !found {
		return err
	}

	if err := sleepCtx(ctx, t.grace); err != nil {
		return err
	}

	_, err = t.signal(ctx, true)
	return err
}

// signal sends the graceful or forced kill to every name and reports whether
// any process matched.
func (t *ProcessTerminator) signal(ctx context.Context, force bool) (bool, error) {
	var errs []error
	found := false
	for _, name := range t.names {
		cmd, args := t.command(name, force)
		_, err := t.runner.Run(ctx, cmd, args...)
		switch {
		case err == nil:
			found = true
		case noProcessMatched(err, t.goos):
		default:
			errs = append(errs, fmt.Errorf("%s %s: %w", cmd, name, err))
		}
	}
	return found, errors.Join(errs...)
}

func (t *ProcessTerminator) command(name string, force bool) (string, []string) {
	if t.goos == "windows" {
		args := []string{"/IM", name + ".exe", "/T"}
		if force {
			args = append([]string{"/F"}, args...)
		}
		return "taskkill", args
	}
	sig := "-TERM"
	if force {
		sig = "-KILL"
	}
	return "pkill", []string{sig, "-x", name}
}

// noProcessMatched recognises the "nothing to kill" exit status of pkill (1)
// and taskkill (128).
func noProcessMatched(err error, goos string) bool {
	var exitErr interface{ ExitCode() int }
	if !errors.As(err, &exitErr) {
		return false
	}
	if goos == "windows" {
		return exitErr.ExitCode() == 128
	}
	return exitErr.ExitCode() == 1
}
