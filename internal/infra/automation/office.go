// Package automation drives a headless office suite for the workbook
// operations the library path cannot perform: open-and-resave, repair-open
// and recalculation.
package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/sheetfix/internal/infra/files"
)

// ErrNoOutput is returned when the suite exits cleanly without writing a file.
var ErrNoOutput = errors.New("automation produced no output")

// Config holds automation settings.
type Config struct {
	Binary       string        `yaml:"binary"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	GracePeriod  time.Duration `yaml:"grace_period"`
	ProcessNames []string      `yaml:"process_names"`
}

// DefaultConfig returns settings for a LibreOffice install on PATH.
func DefaultConfig() Config {
	return Config{
		Binary:       "soffice",
		Timeout:      2 * time.Minute,
		RetryDelay:   2 * time.Second,
		GracePeriod:  2 * time.Second,
		ProcessNames: []string{"soffice.bin", "soffice"},
	}
}

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err != nil && out.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), err
}

// Office converts workbooks through the suite, one session at a time.
type Office struct {
	cfg        Config
	runner     CommandRunner
	terminator *ProcessTerminator
	sleep      func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// NewOffice creates a client. A nil runner uses ExecRunner.
func NewOffice(cfg Config, runner CommandRunner) *Office {
	if runner == nil {
		runner = ExecRunner{}
	}
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.ProcessNames) == 0 {
		cfg.ProcessNames = def.ProcessNames
	}
	return &Office{
		cfg:        cfg,
		runner:     runner,
		terminator: NewProcessTerminator(cfg.ProcessNames, cfg.GracePeriod, runner),
		sleep:      sleepCtx,
	}
}

// Binary returns the suite executable invoked for conversions.
func (o *Office) Binary() string {
	return o.cfg.Binary
}

// Terminator returns the terminator for the suite's processes.
func (o *Office) Terminator() *ProcessTerminator {
	return o.terminator
}

// Convert opens src in the suite and saves it as an xlsx workbook at dst.
// Transient failures are retried up to retries more times.
func (o *Office) Convert(ctx context.Context, src, dst string, retries int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		err := o.convertOnce(ctx, src, dst)
		if err == nil {
			return nil
		}
		lastErr = err

		action := ClassifyError(err)
		slog.Warn("Automation call failed",
			"src", src,
			"attempt", attempt+1,
			"action", action.String(),
			"error", err,
		)
		if action == ActionFatal || attempt == retries {
			break
		}
		if action == ActionRestart {
			if err := o.terminator.Terminate(ctx); err != nil {
				slog.Warn("Failed to terminate stale session", "error", err)
			}
		}
		if err := o.sleep(ctx, o.cfg.RetryDelay); err != nil {
			return err
		}
	}

	return fmt.Errorf("automation failed after %d attempts: %w", retries+1, lastErr)
}

func (o *Office) convertOnce(ctx context.Context, src, dst string) error {
	outDir, err := os.MkdirTemp("", "sheetfix-office-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	_, err = o.runner.Run(callCtx, o.cfg.Binary,
		"--headless", "--norestore", "--nolockcheck",
		"--convert-to", "xlsx",
		"--outdir", outDir,
		src,
	)
	if err != nil {
		return err
	}

	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".xlsx")
	if err := files.RequireNonEmpty(produced); err != nil {
		return fmt.Errorf("%w: %v", ErrNoOutput, err)
	}
	return files.Move(produced, dst)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
