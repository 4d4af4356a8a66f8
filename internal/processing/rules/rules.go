// Package rules applies the reconciliation comment rule to a worksheet.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/workbook"
)

// Header names the rule reads.
const (
	HeaderDifference  = "Difference"
	HeaderInclude     = "Include in CFO Cert Letter"
	HeaderExplanation = "Explanation"
)

// Comment values written into the added column.
const (
	CommentHeader     = "DO Comments"
	CommentReasonable = "Explanation Reasonable"
	CommentInclude    = "Explanation Reasonable; Include in CFO Cert Letter"
	CommentRequired   = "Explanation Required"
)

const (
	headerFill    = "FFFF00"
	headerFont    = "FF0000"
	attentionFill = "FFCCCC"
	commentWidth  = 25
)

// ErrMissingHeaders is returned when the header row lacks a required column.
var ErrMissingHeaders = errors.New("missing headers")

// DefaultColumns are the headers the comment rule cannot run without.
var DefaultColumns = []string{HeaderDifference, HeaderInclude, HeaderExplanation}

// Report summarises one Apply call.
type Report struct {
	Column    string
	FirstRow  int
	LastRow   int
	Commented int
	Failed    int
}

// Comment decides the comment for one row. attention marks rows whose
// explanation is missing.
func Comment(difference, include, explanation string) (text string, attention bool) {
	difference = strings.TrimSpace(difference)
	if difference == "" {
		return "", false
	}
	include = strings.TrimSpace(include)
	explanation = strings.TrimSpace(explanation)
	explained := explanation != "" && !isZero(explanation)

	switch {
	case include == "N" && explained:
		return CommentReasonable, false
	case include == "Y" && explanation != "":
		return CommentInclude, false
	case !explained && !isZero(difference):
		return CommentRequired, true
	}
	return "", false
}

func isZero(v string) bool {
	n, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	return err == nil && n == 0
}

// Apply runs the rule against params.SheetName in f: unprotects the sheet,
// unhides its columns, appends the styled comment column and comments every
// row between the header and the end of the section. Row failures are logged
// and counted, never returned.
func Apply(f *excelize.File, params domain.TransformParams) (Report, error) {
	sheet := params.SheetName
	if err := workbook.RequireSheet(f, sheet); err != nil {
		return Report{}, err
	}

	if params.SheetPassword != "" {
		err := f.UnprotectSheet(sheet, params.SheetPassword)
		if err != nil && !errors.Is(err, excelize.ErrUnprotectSheet) {
			return Report{}, fmt.Errorf("failed to unprotect sheet: %w", err)
		}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Report{}, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < params.HeaderRow {
		return Report{}, fmt.Errorf("%w: header row %d is beyond the last row %d", ErrMissingHeaders, params.HeaderRow, len(rows))
	}

	width := workbook.MaxColumns(rows)
	if err := unhideColumns(f, sheet, width); err != nil {
		return Report{}, err
	}

	columns, err := findColumns(rows[params.HeaderRow-1], requiredHeaders(params.RequiredColumns))
	if err != nil {
		return Report{}, err
	}

	end := sectionEnd(f, sheet, params.HeaderRow, len(rows))

	commentCol, err := excelize.ColumnNumberToName(width + 1)
	if err != nil {
		return Report{}, err
	}
	if err := addCommentHeader(f, sheet, commentCol, params.HeaderRow); err != nil {
		return Report{}, err
	}

	attentionStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{attentionFill}},
	})
	if err != nil {
		return Report{}, fmt.Errorf("failed to create attention style: %w", err)
	}

	report := Report{Column: commentCol, FirstRow: params.HeaderRow + 1, LastRow: end - 1}
	for r := params.HeaderRow + 1; r < end; r++ {
		row := rowAt(rows, r)
		text, attention := Comment(
			cellAt(row, columns[HeaderDifference]),
			cellAt(row, columns[HeaderInclude]),
			cellAt(row, columns[HeaderExplanation]),
		)
		if text == "" {
			continue
		}

		cell := commentCol + strconv.Itoa(r)
		if err := f.SetCellStr(sheet, cell, text); err != nil {
			slog.Warn("Failed to write comment", "row", r, "error", err)
			report.Failed++
			continue
		}
		if attention {
			if err := f.SetCellStyle(sheet, cell, cell, attentionStyle); err != nil {
				slog.Warn("Failed to highlight comment", "row", r, "error", err)
			}
		}
		report.Commented++
	}

	slog.Debug("Comment rule applied",
		"sheet", sheet,
		"column", commentCol,
		"commented", report.Commented,
		"failed", report.Failed,
	)
	return report, nil
}

func requiredHeaders(extra []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range append(append([]string(nil), DefaultColumns...), extra...) {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// findColumns maps each required header to its 1-based column.
func findColumns(header []string, required []string) (map[string]int, error) {
	columns := make(map[string]int)
	for i, v := range header {
		v = strings.TrimSpace(v)
		if _, ok := columns[v]; !ok && v != "" {
			columns[v] = i + 1
		}
	}

	var missing []string
	for _, h := range required {
		if _, ok := columns[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeaders, strings.Join(missing, ", "))
	}
	return columns, nil
}

// sectionEnd returns the exclusive end row: the first row below the header
// whose column A fill matches the header's, or one past the last row.
func sectionEnd(f *excelize.File, sheet string, headerRow, lastRow int) int {
	fill := workbook.CellFill(f, sheet, "A"+strconv.Itoa(headerRow))
	if fill == "" {
		return lastRow + 1
	}
	for r := headerRow + 1; r <= lastRow; r++ {
		if workbook.CellFill(f, sheet, "A"+strconv.Itoa(r)) == fill {
			return r
		}
	}
	return lastRow + 1
}

func unhideColumns(f *excelize.File, sheet string, width int) error {
	if width == 0 {
		return nil
	}
	last, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return err
	}
	if err := f.SetColVisible(sheet, "A:"+last, true); err != nil {
		return fmt.Errorf("failed to unhide columns: %w", err)
	}
	return nil
}

func addCommentHeader(f *excelize.File, sheet, col string, headerRow int) error {
	thin := func(side string) excelize.Border {
		return excelize.Border{Type: side, Color: "000000", Style: 1}
	}
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Font: &excelize.Font{Color: headerFont, Bold: true, Size: 11, Family: "Calibri"},
		Border: []excelize.Border{
			thin("left"), thin("right"), thin("top"), thin("bottom"),
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	cell := col + strconv.Itoa(headerRow)
	if err := f.SetCellStr(sheet, cell, CommentHeader); err != nil {
		return fmt.Errorf("failed to write comment header: %w", err)
	}
	if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return fmt.Errorf("failed to style comment header: %w", err)
	}
	return f.SetColWidth(sheet, col, col, commentWidth)
}

func rowAt(rows [][]string, r int) []string {
	if r-1 < len(rows) {
		return rows[r-1]
	}
	return nil
}

func cellAt(row []string, col int) string {
	if col >= 1 && col <= len(row) {
		return row[col-1]
	}
	return ""
}
