package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		val  string
		want bool
	}{
		{"42", true},
		{"-3.5", true},
		{"0.25", true},
		{"0", true},
		{"1e3", true},
		{"007", false},
		{"", false},
		{"12a", false},
		{"N/A", false},
		{"1.2.3", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNumeric(tt.val), "IsNumeric(%q)", tt.val)
	}
}

func TestNormalizeColor(t *testing.T) {
	tests := map[string]string{
		"#4472c4":  "4472C4",
		"FF4472C4": "4472C4",
		" ffc000 ": "FFC000",
		"":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeColor(in), "NormalizeColor(%q)", in)
	}
}

func TestMaxColumns(t *testing.T) {
	assert.Equal(t, 3, MaxColumns([][]string{{"a"}, {"a", "b", "c"}, nil}))
	assert.Zero(t, MaxColumns(nil))
}

func TestNewAndRequireSheet(t *testing.T) {
	f, err := New("Data", "Notes")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Data", "Notes"}, f.GetSheetList())
	assert.NoError(t, RequireSheet(f, "Data"))
	assert.ErrorIs(t, RequireSheet(f, "Missing"), ErrSheetNotFound)
}

func TestWriteRowsAndCopySheet(t *testing.T) {
	src, err := New("Data")
	require.NoError(t, err)
	defer src.Close()
	require.NoError(t, WriteRows(src, "Data", [][]string{{"Agency", "Amount"}, {"007", "12.5"}}))
	require.NoError(t, src.MergeCell("Data", "A1", "B1"))

	dst, err := New("Copy")
	require.NoError(t, err)
	defer dst.Close()
	require.NoError(t, CopySheet(src, "Data", dst, "Copy", CopyOptions{Styles: true, Dimensions: true}))

	v, _ := dst.GetCellValue("Copy", "A2")
	assert.Equal(t, "007", v)
	v, _ = dst.GetCellValue("Copy", "B2")
	assert.Equal(t, "12.5", v)

	merged, err := dst.GetMergeCells("Copy")
	require.NoError(t, err)
	assert.Empty(t, merged, "merges copied")
}

func TestUnmergeAll(t *testing.T) {
	f, err := New("Data")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.MergeCell("Data", "A1", "C1"))
	require.NoError(t, f.MergeCell("Data", "A3", "A5"))

	n, err := UnmergeAll(f, "Data")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	merged, err := f.GetMergeCells("Data")
	require.NoError(t, err)
	assert.Empty(t, merged)
}

func TestFindErrorMarker(t *testing.T) {
	f, err := New("Data", "Totals")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.SetCellStr("Data", "A1", "fine"))

	_, found := FindErrorMarker(f)
	require.False(t, found, "unexpected marker in clean workbook")

	require.NoError(t, f.SetCellStr("Totals", "B4", "#REF!"))
	loc, found := FindErrorMarker(f)
	assert.True(t, found)
	assert.Equal(t, "Totals!B4=#REF!", loc)
}
