// Package validate decides whether a produced workbook is acceptable.
package validate

import (
	"context"
	"log/slog"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/infra/workbook"
)

// SecondaryChecker re-inspects a workbook through another reader. ok=false
// with a reason rejects the workbook; err means the check could not run.
type SecondaryChecker interface {
	Check(ctx context.Context, path string) (ok bool, reason string, err error)
}

// Validator checks artifacts without mutating them.
type Validator struct {
	requiredSheet string
	secondary     SecondaryChecker
	strict        bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithSecondary adds a secondary checker run after the primary checks pass.
func WithSecondary(c SecondaryChecker) Option {
	return func(v *Validator) { v.secondary = c }
}

// WithStrict makes a secondary checker error reject the artifact.
func WithStrict(strict bool) Option {
	return func(v *Validator) { v.strict = strict }
}

// New creates a validator requiring requiredSheet when it is non-empty.
func New(requiredSheet string, opts ...Option) *Validator {
	v := &Validator{requiredSheet: requiredSheet}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check returns a fresh result for the artifact at path.
func (v *Validator) Check(ctx context.Context, path string) domain.ValidationResult {
	if err := files.RequireNonEmpty(path); err != nil {
		return domain.Invalid("unreadable: " + err.Error())
	}

	f, err := workbook.Open(path)
	if err != nil {
		return domain.Invalid("not openable: " + err.Error())
	}
	sheets := f.GetSheetList()
	_ = f.Close()

	count := len(sheets)
	if count == 0 {
		return domain.ValidationResult{Reason: "workbook has no sheets", SheetCount: &count}
	}
	if v.requiredSheet != "" && !contains(sheets, v.requiredSheet) {
		return domain.ValidationResult{
			Reason:     "required sheet missing: " + v.requiredSheet,
			SheetCount: &count,
		}
	}

	if v.secondary != nil {
		ok, reason, err := v.secondary.Check(ctx, path)
		switch {
		case err != nil && v.strict:
			return domain.ValidationResult{Reason: "secondary check failed: " + err.Error(), SheetCount: &count}
		case err != nil:
			// A checker that cannot run leaves the primary verdict standing.
			slog.Warn("Secondary check errored, accepting artifact", "path", path, "error", err)
		case !ok:
			return domain.ValidationResult{Reason: reason, SheetCount: &count}
		}
	}

	return domain.ValidationResult{Valid: true, SheetCount: &count}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
