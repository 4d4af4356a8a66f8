// Package workbook wraps the excelize operations shared by strategies, repairers
// and the validator.
package workbook

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when a required sheet is missing.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrorMarkers are the cell values a spreadsheet engine writes for failed formulas.
var ErrorMarkers = []string{"#REF!", "#VALUE!", "#DIV/0!", "#NAME?", "#N/A", "#NULL!", "#NUM!"}

// Open opens an existing workbook.
func Open(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return f, nil
}

// HasSheet reports whether the workbook contains the named sheet.
func HasSheet(f *excelize.File, name string) bool {
	idx, err := f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// RequireSheet returns ErrSheetNotFound when the sheet is missing.
func RequireSheet(f *excelize.File, name string) error {
	if !HasSheet(f, name) {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return nil
}

// New creates an empty workbook whose sheets are named in order.
func New(sheets ...string) (*excelize.File, error) {
	f := excelize.NewFile()
	if len(sheets) == 0 {
		return f, nil
	}

	defaultName := f.GetSheetName(0)
	if err := f.SetSheetName(defaultName, sheets[0]); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name sheet %q: %w", sheets[0], err)
	}
	for _, name := range sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
	}
	return f, nil
}

// CopyOptions selects what CopySheet carries over besides cell values.
type CopyOptions struct {
	Styles     bool
	Dimensions bool
}

// CopySheet copies cell values of srcSheet into dstSheet. Formula cells are
// copied as their cached values. Merged ranges are never copied.
func CopySheet(src *excelize.File, srcSheet string, dst *excelize.File, dstSheet string, opts CopyOptions) error {
	rows, err := src.GetRows(srcSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read sheet %q: %w", srcSheet, err)
	}

	styles := make(map[int]int)
	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if val != "" {
				if err := copyTypedValue(src, srcSheet, dst, dstSheet, cell, val); err != nil {
					return fmt.Errorf("failed to copy %s!%s: %w", srcSheet, cell, err)
				}
			}
			if opts.Styles {
				// Style failures only lose formatting.
				_ = copyStyle(src, srcSheet, dst, dstSheet, cell, styles)
			}
		}
	}

	if opts.Dimensions {
		copyDimensions(src, srcSheet, dst, dstSheet, len(rows), MaxColumns(rows))
	}
	return nil
}

func copyTypedValue(src *excelize.File, srcSheet string, dst *excelize.File, dstSheet, cell, val string) error {
	typ, err := src.GetCellType(srcSheet, cell)
	if err != nil {
		return SetInferred(dst, dstSheet, cell, val)
	}
	switch typ {
	case excelize.CellTypeBool:
		return dst.SetCellBool(dstSheet, cell, val == "1" || strings.EqualFold(val, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return dst.SetCellStr(dstSheet, cell, val)
	default:
		return SetInferred(dst, dstSheet, cell, val)
	}
}

func copyStyle(src *excelize.File, srcSheet string, dst *excelize.File, dstSheet, cell string, cache map[int]int) error {
	id, err := src.GetCellStyle(srcSheet, cell)
	if err != nil || id == 0 {
		return err
	}
	newID, ok := cache[id]
	if !ok {
		style, err := src.GetStyle(id)
		if err != nil {
			return err
		}
		newID, err = dst.NewStyle(style)
		if err != nil {
			return err
		}
		cache[id] = newID
	}
	return dst.SetCellStyle(dstSheet, cell, cell, newID)
}

func copyDimensions(src *excelize.File, srcSheet string, dst *excelize.File, dstSheet string, rows, cols int) {
	for c := 1; c <= cols; c++ {
		name, err := excelize.ColumnNumberToName(c)
		if err != nil {
			continue
		}
		if w, err := src.GetColWidth(srcSheet, name); err == nil && w > 0 {
			_ = dst.SetColWidth(dstSheet, name, name, w)
		}
	}
	for r := 1; r <= rows; r++ {
		if h, err := src.GetRowHeight(srcSheet, r); err == nil && h > 0 {
			_ = dst.SetRowHeight(dstSheet, r, h)
		}
	}
}

// SetInferred writes val as a number when it looks like one, otherwise as text.
func SetInferred(f *excelize.File, sheet, cell, val string) error {
	if IsNumeric(val) {
		n, _ := strconv.ParseFloat(val, 64)
		return f.SetCellFloat(sheet, cell, n, -1, 64)
	}
	return f.SetCellStr(sheet, cell, val)
}

// IsNumeric reports whether val is a plain decimal number. Values with leading
// zeros ("007") are identifiers and stay text.
func IsNumeric(val string) bool {
	if val == "" || strings.Trim(val, "0123456789.-+eE") != "" {
		return false
	}
	if _, err := strconv.ParseFloat(val, 64); err != nil {
		return false
	}
	digits := strings.TrimLeft(val, "-+")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return false
	}
	return true
}

// WriteRows writes rows into sheet starting at A1, inferring numbers.
func WriteRows(f *excelize.File, sheet string, rows [][]string) error {
	for r, row := range rows {
		for c, val := range row {
			if val == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := SetInferred(f, sheet, cell, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// MaxColumns returns the widest row length.
func MaxColumns(rows [][]string) int {
	max := 0
	for _, row := range rows {
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}

// UnmergeAll removes every merged range from sheet and returns how many were removed.
func UnmergeAll(f *excelize.File, sheet string) (int, error) {
	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to list merged cells: %w", err)
	}
	for _, mc := range merged {
		if err := f.UnmergeCell(sheet, mc.GetStartAxis(), mc.GetEndAxis()); err != nil {
			return 0, fmt.Errorf("failed to unmerge %s:%s: %w", mc.GetStartAxis(), mc.GetEndAxis(), err)
		}
	}
	return len(merged), nil
}

// FindErrorMarker scans every sheet for a formula error value and returns its location.
func FindErrorMarker(f *excelize.File) (string, bool) {
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for r, row := range rows {
			for c, val := range row {
				for _, marker := range ErrorMarkers {
					if val == marker {
						cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
						return fmt.Sprintf("%s!%s=%s", sheet, cell, marker), true
					}
				}
			}
		}
	}
	return "", false
}

// CellFill returns the normalised RGB fill colour of a cell, or "" when unfilled.
func CellFill(f *excelize.File, sheet, cell string) string {
	id, err := f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return ""
	}
	style, err := f.GetStyle(id)
	if err != nil || style == nil || len(style.Fill.Color) == 0 {
		return ""
	}
	return NormalizeColor(style.Fill.Color[0])
}

// NormalizeColor upper-cases a colour and drops a leading "#" and alpha channel.
func NormalizeColor(c string) string {
	c = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(c), "#"))
	if len(c) == 8 {
		c = c[2:]
	}
	return c
}
