package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/infra/workbook"
	"github.com/vietddude/sheetfix/internal/processing/rules"
)

// ErrNoAutomation is returned by automation adapters built without a client.
var ErrNoAutomation = errors.New("automation not configured")

// Converter re-saves a workbook through the automation surface.
type Converter interface {
	Convert(ctx context.Context, src, dst string, retries int) error
}

// DefaultEntries returns the standard order: fresh-rebuild, library-direct,
// automation-copy, raw-copy.
func DefaultEntries(conv Converter) []Entry {
	return []Entry{
		{
			Descriptor:  domain.StrategyDescriptor{Name: "fresh-rebuild", Capability: domain.CapabilityFreshRebuild},
			Transformer: FreshRebuild{},
		},
		{
			Descriptor:  domain.StrategyDescriptor{Name: "library-direct", Capability: domain.CapabilityLibraryDirect},
			Transformer: LibraryDirect{},
		},
		{
			Descriptor:  domain.StrategyDescriptor{Name: "automation-copy", Capability: domain.CapabilityAutomationCopy},
			Transformer: AutomationCopy{Converter: conv},
		},
		{
			Descriptor:  domain.StrategyDescriptor{Name: "raw-copy", Capability: domain.CapabilityRawCopy},
			Transformer: RawCopy{},
		},
	}
}

// FreshRebuild copies every sheet into a new workbook, keeping values, styles
// and dimensions but dropping merges and anything else the library cannot
// read, then applies the comment rule.
type FreshRebuild struct{}

func (FreshRebuild) Apply(ctx context.Context, input, candidate string, params domain.TransformParams) error {
	src, err := workbook.Open(input)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := workbook.RequireSheet(src, params.SheetName); err != nil {
		return err
	}

	sheets := src.GetSheetList()
	dst, err := workbook.New(sheets...)
	if err != nil {
		return err
	}
	defer dst.Close()

	for _, s := range sheets {
		if err := workbook.CopySheet(src, s, dst, s, workbook.CopyOptions{Styles: true, Dimensions: true}); err != nil {
			return err
		}
	}

	return applyAndSave(dst, candidate, params)
}

// LibraryDirect edits the input in place with the library: unmerges the
// target sheet and applies the comment rule.
type LibraryDirect struct{}

func (LibraryDirect) Apply(ctx context.Context, input, candidate string, params domain.TransformParams) error {
	f, err := workbook.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := workbook.RequireSheet(f, params.SheetName); err != nil {
		return err
	}
	n, err := workbook.UnmergeAll(f, params.SheetName)
	if err != nil {
		return err
	}
	slog.Debug("Unmerged cells", "sheet", params.SheetName, "ranges", n)

	return applyAndSave(f, candidate, params)
}

// AutomationCopy re-saves the input through the automation surface, which
// drops external links and repairs what it can on load, then applies the
// comment rule to the re-saved copy.
type AutomationCopy struct {
	Converter Converter
}

func (a AutomationCopy) Apply(ctx context.Context, input, candidate string, params domain.TransformParams) error {
	if a.Converter == nil {
		return ErrNoAutomation
	}
	if err := a.Converter.Convert(ctx, input, candidate, params.MaxAutomationRetries); err != nil {
		return err
	}

	f, err := workbook.Open(candidate)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := workbook.RequireSheet(f, params.SheetName); err != nil {
		return err
	}
	return applyAndSave(f, candidate, params)
}

// RawCopy copies the input byte for byte. It only checks that the target
// sheet exists.
type RawCopy struct{}

func (RawCopy) Apply(ctx context.Context, input, candidate string, params domain.TransformParams) error {
	if err := files.Copy(input, candidate); err != nil {
		return err
	}
	f, err := workbook.Open(candidate)
	if err != nil {
		return err
	}
	defer f.Close()
	return workbook.RequireSheet(f, params.SheetName)
}

func applyAndSave(f *excelize.File, candidate string, params domain.TransformParams) error {
	if _, err := rules.Apply(f, params); err != nil {
		return fmt.Errorf("failed to apply comment rule: %w", err)
	}
	if err := f.SaveAs(candidate); err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	return nil
}
