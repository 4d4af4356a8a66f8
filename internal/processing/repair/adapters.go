package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/automation"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/infra/workbook"
)

// ErrNotConfigured is returned by adapters missing their external dependency.
var ErrNotConfigured = errors.New("repairer not configured")

// Converter re-saves a workbook through the automation surface.
type Converter interface {
	Convert(ctx context.Context, src, dst string, retries int) error
}

// DefaultEntries returns the standard order: automation-repair,
// tabular-extract, structural-rebuild, external-tool.
func DefaultEntries(conv Converter, tool ExternalTool) []Entry {
	return []Entry{
		{
			Descriptor: domain.RepairDescriptor{Name: "automation-repair", Capability: domain.CapabilityAutomationRepair},
			Repairer:   AutomationRepair{Converter: conv},
		},
		{
			Descriptor: domain.RepairDescriptor{Name: "tabular-extract", Capability: domain.CapabilityTabularExtract},
			Repairer:   &TabularExtract{},
		},
		{
			Descriptor: domain.RepairDescriptor{Name: "structural-rebuild", Capability: domain.CapabilityStructuralRebuild},
			Repairer:   &StructuralRebuild{},
		},
		{
			Descriptor: domain.RepairDescriptor{Name: "external-tool", Capability: domain.CapabilityExternalTool},
			Repairer:   tool,
		},
	}
}

// AutomationRepair opens the workbook in the automation surface, letting it
// run its own repair-on-load, and saves the result.
type AutomationRepair struct {
	Converter Converter
}

func (a AutomationRepair) Repair(ctx context.Context, src, candidate string, params domain.TransformParams) error {
	if a.Converter == nil {
		return fmt.Errorf("%w: automation", ErrNotConfigured)
	}
	return a.Converter.Convert(ctx, src, candidate, params.MaxAutomationRetries)
}

type sheetReader func(f *excelize.File, sheet string) ([][]string, error)

func readRaw(f *excelize.File, sheet string) ([][]string, error) {
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// TabularExtract re-extracts every sheet as a plain value grid into a new
// workbook. A sheet that cannot be read becomes an empty placeholder.
type TabularExtract struct {
	read sheetReader
}

func (t *TabularExtract) Repair(ctx context.Context, src, candidate string, params domain.TransformParams) error {
	read := t.read
	if read == nil {
		read = readRaw
	}
	return rebuildSheets(src, candidate, func(in, out *excelize.File, sheet string) error {
		rows, err := read(in, sheet)
		if err != nil {
			return err
		}
		return workbook.WriteRows(out, sheet, rows)
	})
}

// StructuralRebuild copies typed cell values into a new workbook, dropping
// formatting and merges. A sheet that cannot be copied becomes an empty placeholder.
type StructuralRebuild struct {
	copy func(in *excelize.File, out *excelize.File, sheet string) error
}

func (s *StructuralRebuild) Repair(ctx context.Context, src, candidate string, params domain.TransformParams) error {
	cp := s.copy
	if cp == nil {
		cp = func(in, out *excelize.File, sheet string) error {
			return workbook.CopySheet(in, sheet, out, sheet, workbook.CopyOptions{})
		}
	}
	return rebuildSheets(src, candidate, cp)
}

// rebuildSheets creates a workbook with src's sheet list and fills each sheet
// with fill, leaving a sheet empty when fill fails.
func rebuildSheets(src, candidate string, fill func(in, out *excelize.File, sheet string) error) error {
	in, err := workbook.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	sheets := in.GetSheetList()
	if len(sheets) == 0 {
		return errors.New("workbook has no sheets")
	}

	out, err := workbook.New(sheets...)
	if err != nil {
		return err
	}
	defer out.Close()

	placeholders := 0
	for _, sheet := range sheets {
		if err := fill(in, out, sheet); err != nil {
			slog.Warn("Sheet unreadable, writing placeholder", "sheet", sheet, "error", err)
			placeholders++
			if err := resetSheet(out, sheet); err != nil {
				return err
			}
		}
	}
	if placeholders == len(sheets) {
		return errors.New("no sheet could be recovered")
	}

	if err := out.SaveAs(candidate); err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	return nil
}

// resetSheet clears a partially filled sheet by recreating it in place.
func resetSheet(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) == 0 {
		return nil
	}
	for r, row := range rows {
		for c := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, nil); err != nil {
				return fmt.Errorf("failed to clear placeholder sheet %q: %w", sheet, err)
			}
		}
	}
	return nil
}

// ExternalTool runs a configured conversion command. Arguments may reference
// {input}, {output} and {outdir}; a tool that writes {outdir}/{stem}.xlsx
// instead of {output} is also accepted.
type ExternalTool struct {
	Command []string
	Runner  automation.CommandRunner
}

func (e ExternalTool) Repair(ctx context.Context, src, candidate string, params domain.TransformParams) error {
	if len(e.Command) == 0 {
		return fmt.Errorf("%w: external tool command", ErrNotConfigured)
	}
	runner := e.Runner
	if runner == nil {
		runner = automation.ExecRunner{}
	}

	outDir, err := os.MkdirTemp("", "sheetfix-tool-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	r := strings.NewReplacer("{input}", src, "{output}", candidate, "{outdir}", outDir)
	args := make([]string, len(e.Command))
	for i, a := range e.Command {
		args[i] = r.Replace(a)
	}

	if _, err := runner.Run(ctx, args[0], args[1:]...); err != nil {
		return fmt.Errorf("external tool failed: %w", err)
	}

	if files.RequireNonEmpty(candidate) == nil {
		return nil
	}
	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".xlsx")
	if err := files.RequireNonEmpty(produced); err != nil {
		return fmt.Errorf("external tool produced no output: %w", err)
	}
	return files.Move(produced, candidate)
}
