// Package strategy tries interchangeable transformers in a fixed order until
// one produces a workbook.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/processing/metrics"
)

// Transformer writes a transformed copy of input to candidate.
type Transformer interface {
	Apply(ctx context.Context, input, candidate string, params domain.TransformParams) error
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, input, candidate string, params domain.TransformParams) error

func (f TransformerFunc) Apply(ctx context.Context, input, candidate string, params domain.TransformParams) error {
	return f(ctx, input, candidate, params)
}

// Guard hands out temp candidates and resets automation sessions.
type Guard interface {
	TempPath(prefix string) string
	Reset(ctx context.Context)
}

// Entry binds a transformer to its descriptor.
type Entry struct {
	Descriptor  domain.StrategyDescriptor
	Transformer Transformer
}

// Result is the outcome of one chain run. StructurallyOK means a non-empty
// workbook now sits at Path; it says nothing about validity.
type Result struct {
	StructurallyOK bool
	Path           string
	Strategy       domain.StrategyDescriptor
	Err            error
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
func (c *Chain) Descriptors() []domain.StrategyDescriptor {
	out := make([]domain.StrategyDescriptor, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Descriptor
	}
	return out
}

// Run tries each strategy against a fresh temp candidate and moves the first
// structurally successful one to output. Strategy failures are logged and
// never returned individually.
func (c *Chain) Run(ctx context.Context, input, output string, params domain.TransformParams) Result {
	var lastErr error

	for _, e := range c.entries {
		d := e.Descriptor
		if err := ctx.Err(); err != nil {
			return Result{Err: fmt.Errorf("%w: %v", domain.ErrCanceled, err)}
		}

		if d.Capability.UsesAutomation() {
			if !params.EnableAutomation {
				slog.Debug("Skipping automation strategy", "strategy", d.Name)
				metrics.StrategyResults.WithLabelValues(d.Name, "skipped").Inc()
				continue
			}
			c.guard.Reset(ctx)
		}

		candidate := c.guard.TempPath("strategy")
		start := time.Now()
		err := apply(ctx, e.Transformer, input, candidate, params)
		if err == nil {
			err = files.RequireNonEmpty(candidate)
		}
		if err == nil {
			err = files.Move(candidate, output)
		}
		metrics.StrategyDuration.WithLabelValues(d.Name).Observe(time.Since(start).Seconds())

		if err != nil {
			lastErr = fmt.Errorf("%w: %s: %v", domain.ErrStrategyFailed, d.Name, err)
			slog.Warn("Strategy failed", "strategy", d.Name, "ordinal", d.Ordinal, "error", err)
			metrics.StrategyResults.WithLabelValues(d.Name, "failed").Inc()
			continue
		}

		slog.Info("Strategy succeeded", "strategy", d.Name, "ordinal", d.Ordinal, "output", output)
		metrics.StrategyResults.WithLabelValues(d.Name, "succeeded").Inc()
		return Result{StructurallyOK: true, Path: output, Strategy: d}
	}

	if lastErr == nil {
		lastErr = errors.New("no eligible strategy")
	}
	return Result{Err: fmt.Errorf("%w: %v", domain.ErrAllStrategiesFailed, lastErr)}
}

func apply(ctx context.Context, t Transformer, input, candidate string, params domain.TransformParams) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Apply(ctx, input, candidate, params)
}
