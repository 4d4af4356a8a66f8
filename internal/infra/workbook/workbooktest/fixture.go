// Package workbooktest builds workbook fixtures for tests.
package workbooktest

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SheetName is the reconciliation sheet used by the fixtures.
const SheetName = "SF132 to SF133 Reconciliation"

// HeaderRow is the header row of the Reconciliation fixture.
const HeaderRow = 3

// SectionFill is the fill shared by the header and the section end row.
const SectionFill = "4472C4"

// Reconciliation writes a workbook with a titled reconciliation sheet and a
// notes sheet. Rows 4-7 are data, row 8 closes the section with the header
// fill and row 9 sits below the section.
func Reconciliation(t testing.TB, dir string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	if _, err := f.NewSheet("Notes"); err != nil {
		t.Fatalf("add sheet: %v", err)
	}

	rows := [][]any{
		{"Agency reconciliation"},
		{},
		{"Line", "Difference", "Include in CFO Cert Letter", "Explanation"},
		{"1010", 100, "N", "Timing difference"},
		{"1020", 50, "Y", "Reclassification"},
		{"1030", 25, "N", ""},
		{"1040", 0, "N", ""},
		{"Total", 175},
		{"9999", 10, "N", ""},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				t.Fatalf("set %s: %v", cell, err)
			}
		}
	}

	fill, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{SectionFill}},
	})
	if err != nil {
		t.Fatalf("new style: %v", err)
	}
	for _, r := range []int{HeaderRow, 8} {
		cell := "A" + strconv.Itoa(r)
		if err := f.SetCellStyle(SheetName, cell, cell, fill); err != nil {
			t.Fatalf("style %s: %v", cell, err)
		}
	}
	if err := f.MergeCell(SheetName, "A1", "D1"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := f.SetCellValue("Notes", "A1", "prepared by finance"); err != nil {
		t.Fatalf("notes: %v", err)
	}

	path := filepath.Join(dir, "reconciliation.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	return path
}

// WithSheets writes a workbook containing the named sheets, each with a
// single value in A1.
func WithSheets(t testing.TB, dir, name string, sheets ...string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s); err != nil {
			t.Fatalf("add sheet: %v", err)
		}
		if err := f.SetCellValue(s, "A1", s); err != nil {
			t.Fatalf("set value: %v", err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	return path
}

// CellValue reads one cell from the workbook at path.
func CellValue(t testing.TB, path, sheet, cell string) string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	v, err := f.GetCellValue(sheet, cell)
	if err != nil {
		t.Fatalf("get %s: %v", cell, err)
	}
	return v
}

// WithCells writes a single-sheet workbook holding the given cell values.
func WithCells(t testing.TB, dir, name, sheet string, cells map[string]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for cell, v := range cells {
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	return path
}
