// Package repair tries repairers in a fixed order against a workbook that
// failed validation.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/processing/metrics"
)

// Repairer writes a repaired copy of src to candidate.
type Repairer interface {
	Repair(ctx context.Context, src, candidate string, params domain.TransformParams) error
}

// RepairerFunc adapts a function to Repairer.
type RepairerFunc func(ctx context.Context, src, candidate string, params domain.TransformParams) error

func (f RepairerFunc) Repair(ctx context.Context, src, candidate string, params domain.TransformParams) error {
	return f(ctx, src, candidate, params)
}

// Acceptor judges a repaired candidate. A nil Acceptor accepts every
// structurally sound candidate.
type Acceptor func(ctx context.Context, path string) domain.ValidationResult

// Guard hands out temp candidates and resets automation sessions.
type Guard interface {
	TempPath(prefix string) string
	Reset(ctx context.Context)
}

// Entry binds a repairer to its descriptor.
type Entry struct {
	Descriptor domain.RepairDescriptor
	Repairer   Repairer
}

// Result is the outcome of one chain run. On success Path is a tracked temp
// candidate the caller must promote before the next guard reset.
type Result struct {
	OK       bool
	Path     string
	Repairer domain.RepairDescriptor
	Err      error
}

// Chain runs its entries in the order given to NewChain.
type Chain struct {
	entries []Entry
	guard   Guard
}

// NewChain creates a chain. Entries without an ordinal are numbered by position.
func NewChain(guard Guard, entries ...Entry) *Chain {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Descriptor.Ordinal == 0 {
			e.Descriptor.Ordinal = i + 1
		}
		out[i] = e
	}
	return &Chain{entries: out, guard: guard}
}

// Descriptors returns the chain order.
func (c *Chain) Descriptors() []domain.RepairDescriptor {
	out := make([]domain.RepairDescriptor, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Descriptor
	}
	return out
}

// Run tries each repairer and stops at the first candidate that is non-empty
// and accepted. A rejected candidate counts as that repairer failing.
func (c *Chain) Run(ctx context.Context, path string, params domain.TransformParams, accept Acceptor) Result {
	var lastErr error

	for _, e := range c.entries {
		d := e.Descriptor
		if err := ctx.Err(); err != nil {
			return Result{Err: fmt.Errorf("%w: %v", domain.ErrCanceled, err)}
		}

		if d.Capability.UsesAutomation() {
			if !params.EnableAutomation {
				slog.Debug("Skipping automation repairer", "repairer", d.Name)
				metrics.RepairResults.WithLabelValues(d.Name, "skipped").Inc()
				continue
			}
			c.guard.Reset(ctx)
		}

		candidate := c.guard.TempPath("repair")
		err := repair(ctx, e.Repairer, path, candidate, params)
		if err == nil {
			err = files.RequireNonEmpty(candidate)
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", d.Name, err)
			slog.Warn("Repair failed", "repairer", d.Name, "ordinal", d.Ordinal, "error", err)
			metrics.RepairResults.WithLabelValues(d.Name, "failed").Inc()
			continue
		}

		if accept != nil {
			if vr := accept(ctx, candidate); !vr.Valid {
				lastErr = fmt.Errorf("%w: %s: %s", domain.ErrArtifactInvalid, d.Name, vr.Reason)
				slog.Warn("Repaired workbook rejected", "repairer", d.Name, "reason", vr.Reason)
				metrics.RepairResults.WithLabelValues(d.Name, "rejected").Inc()
				continue
			}
		}

		slog.Info("Repair succeeded", "repairer", d.Name, "ordinal", d.Ordinal)
		metrics.RepairResults.WithLabelValues(d.Name, "succeeded").Inc()
		return Result{OK: true, Path: candidate, Repairer: d}
	}

	if lastErr == nil {
		lastErr = errors.New("no eligible repairer")
	}
	return Result{Err: fmt.Errorf("%w: %v", domain.ErrRepairFailed, lastErr)}
}

func repair(ctx context.Context, r Repairer, src, candidate string, params domain.TransformParams) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Repair(ctx, src, candidate, params)
}
