package strategy

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/infra/workbook"
	"github.com/vietddude/sheetfix/internal/infra/workbook/workbooktest"
	"github.com/vietddude/sheetfix/internal/processing/guard"
	"github.com/vietddude/sheetfix/internal/processing/rules"
)

func writer(content string, calls *[]string, name string) Transformer {
	return TransformerFunc(func(ctx context.Context, input, candidate string, params domain.TransformParams) error {
		*calls = append(*calls, name)
		return os.WriteFile(candidate, []byte(content), 0o644)
	})
}

func failing(err error, calls *[]string, name string) Transformer {
	return TransformerFunc(func(ctx context.Context, input, candidate string, params domain.TransformParams) error {
		*calls = append(*calls, name)
		return err
	})
}

func entry(name string, c domain.Capability, t Transformer) Entry {
	return Entry{Descriptor: domain.StrategyDescriptor{Name: name, Capability: c}, Transformer: t}
}

func testParams() domain.TransformParams {
	return domain.TransformParams{
		SheetName:   workbooktest.SheetName,
		HeaderRow:   workbooktest.HeaderRow,
		MaxAttempts: 1,
	}
}

func outputPath(t *testing.T) string {
	return t.TempDir() + "/out/book_processed.xlsx"
}

func TestChain_ShortCircuits(t *testing.T) {
	var calls []string
	chain := NewChain(guard.New(t.TempDir()),
		entry("first", domain.CapabilityFreshRebuild, writer("first", &calls, "first")),
		entry("second", domain.CapabilityRawCopy, writer("second", &calls, "second")),
	)
	out := outputPath(t)

	res := chain.Run(context.Background(), "in.xlsx", out, testParams())

	require.True(t, res.StructurallyOK)
	assert.Equal(t, []string{"first"}, calls)
	assert.Equal(t, out, res.Path)
	assert.Equal(t, "first", res.Strategy.Name)
	assert.Equal(t, 1, res.Strategy.Ordinal)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestChain_FallsThrough(t *testing.T) {
	var calls []string
	g := guard.New(t.TempDir())
	chain := NewChain(g,
		entry("error", domain.CapabilityFreshRebuild, failing(errors.New("boom"), &calls, "error")),
		entry("panic", domain.CapabilityLibraryDirect, TransformerFunc(
			func(ctx context.Context, input, candidate string, params domain.TransformParams) error {
				calls = append(calls, "panic")
				panic("nil map")
			})),
		entry("empty", domain.CapabilityRawCopy, writer("", &calls, "empty")),
		entry("ok", domain.CapabilityRawCopy, writer("data", &calls, "ok")),
	)

	res := chain.Run(context.Background(), "in.xlsx", outputPath(t), testParams())

	require.True(t, res.StructurallyOK)
	assert.Equal(t, []string{"error", "panic", "empty", "ok"}, calls)
	assert.Equal(t, 4, res.Strategy.Ordinal)
	assert.NoError(t, res.Err)
}

func TestChain_AllFail(t *testing.T) {
	var calls []string
	chain := NewChain(guard.New(t.TempDir()),
		entry("a", domain.CapabilityFreshRebuild, failing(errors.New("first"), &calls, "a")),
		entry("b", domain.CapabilityRawCopy, failing(errors.New("last detail"), &calls, "b")),
	)

	res := chain.Run(context.Background(), "in.xlsx", outputPath(t), testParams())

	assert.False(t, res.StructurallyOK)
	require.ErrorIs(t, res.Err, domain.ErrAllStrategiesFailed)
	assert.Contains(t, res.Err.Error(), "last detail")
	assert.Equal(t, domain.KindAllStrategiesFailed, domain.KindOf(res.Err))
}

func TestChain_AutomationGating(t *testing.T) {
	t.Run("disabled skips", func(t *testing.T) {
		var calls []string
		g := guard.New(t.TempDir())
		chain := NewChain(g,
			entry("auto", domain.CapabilityAutomationCopy, writer("auto", &calls, "auto")),
			entry("raw", domain.CapabilityRawCopy, writer("raw", &calls, "raw")),
		)

		res := chain.Run(context.Background(), "in.xlsx", outputPath(t), testParams())

		require.True(t, res.StructurallyOK)
		assert.Equal(t, []string{"raw"}, calls)
		assert.Zero(t, g.Resets())
	})

	t.Run("enabled resets first", func(t *testing.T) {
		var calls []string
		g := guard.New(t.TempDir())
		auto := TransformerFunc(func(ctx context.Context, input, candidate string, params domain.TransformParams) error {
			calls = append(calls, "auto")
			assert.Equal(t, 1, g.Resets(), "session reset before automation")
			return os.WriteFile(candidate, []byte("auto"), 0o644)
		})
		chain := NewChain(g, entry("auto", domain.CapabilityAutomationCopy, auto))

		params := testParams()
		params.EnableAutomation = true
		res := chain.Run(context.Background(), "in.xlsx", outputPath(t), params)

		require.True(t, res.StructurallyOK)
		assert.Equal(t, []string{"auto"}, calls)
	})

	t.Run("only automation and disabled", func(t *testing.T) {
		var calls []string
		chain := NewChain(guard.New(t.TempDir()),
			entry("auto", domain.CapabilityAutomationCopy, writer("auto", &calls, "auto")),
		)
		res := chain.Run(context.Background(), "in.xlsx", outputPath(t), testParams())
		require.ErrorIs(t, res.Err, domain.ErrAllStrategiesFailed)
		assert.Empty(t, calls)
	})
}

func TestChain_Canceled(t *testing.T) {
	var calls []string
	chain := NewChain(guard.New(t.TempDir()),
		entry("a", domain.CapabilityRawCopy, writer("a", &calls, "a")),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := chain.Run(ctx, "in.xlsx", outputPath(t), testParams())
	require.ErrorIs(t, res.Err, domain.ErrCanceled)
	assert.Empty(t, calls)
}

func TestChain_CandidatesAreTracked(t *testing.T) {
	g := guard.New(t.TempDir())
	var calls []string
	chain := NewChain(g,
		entry("a", domain.CapabilityFreshRebuild, failing(errors.New("x"), &calls, "a")),
		entry("b", domain.CapabilityRawCopy, failing(errors.New("y"), &calls, "b")),
	)
	chain.Run(context.Background(), "in.xlsx", outputPath(t), testParams())

	assert.Len(t, g.Tracked(), 2)
}

func TestDefaultEntries_Order(t *testing.T) {
	chain := NewChain(guard.New(t.TempDir()), DefaultEntries(nil)...)

	var names []string
	for i, d := range chain.Descriptors() {
		names = append(names, d.Name)
		assert.Equal(t, i+1, d.Ordinal)
	}
	assert.Equal(t, []string{"fresh-rebuild", "library-direct", "automation-copy", "raw-copy"}, names)
}

func TestFreshRebuild(t *testing.T) {
	input := workbooktest.Reconciliation(t, t.TempDir())
	candidate := t.TempDir() + "/candidate.xlsx"

	require.NoError(t, FreshRebuild{}.Apply(context.Background(), input, candidate, testParams()))

	f, err := excelize.OpenFile(candidate)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{workbooktest.SheetName, "Notes"}, f.GetSheetList())

	header, _ := f.GetCellValue(workbooktest.SheetName, "E3")
	assert.Equal(t, rules.CommentHeader, header)
	comment, _ := f.GetCellValue(workbooktest.SheetName, "E6")
	assert.Equal(t, rules.CommentRequired, comment)
	notes, _ := f.GetCellValue("Notes", "A1")
	assert.Equal(t, "prepared by finance", notes)

	merged, err := f.GetMergeCells(workbooktest.SheetName)
	require.NoError(t, err)
	assert.Empty(t, merged)
	assert.Equal(t, workbooktest.SectionFill, workbook.CellFill(f, workbooktest.SheetName, "A8"))
}

func TestLibraryDirect(t *testing.T) {
	input := workbooktest.Reconciliation(t, t.TempDir())
	candidate := t.TempDir() + "/candidate.xlsx"

	require.NoError(t, LibraryDirect{}.Apply(context.Background(), input, candidate, testParams()))

	f, err := excelize.OpenFile(candidate)
	require.NoError(t, err)
	defer f.Close()

	merged, err := f.GetMergeCells(workbooktest.SheetName)
	require.NoError(t, err)
	assert.Empty(t, merged)

	comment, _ := f.GetCellValue(workbooktest.SheetName, "E5")
	assert.Equal(t, rules.CommentInclude, comment)
}

func TestAutomationCopy_NotConfigured(t *testing.T) {
	err := AutomationCopy{}.Apply(context.Background(), "in.xlsx", "out.xlsx", testParams())
	require.ErrorIs(t, err, ErrNoAutomation)
}

type copyConverter struct{ calls int }

func (c *copyConverter) Convert(ctx context.Context, src, dst string, retries int) error {
	c.calls++
	return files.Copy(src, dst)
}

func TestAutomationCopy(t *testing.T) {
	input := workbooktest.Reconciliation(t, t.TempDir())
	candidate := t.TempDir() + "/candidate.xlsx"
	conv := &copyConverter{}

	require.NoError(t, AutomationCopy{Converter: conv}.Apply(context.Background(), input, candidate, testParams()))

	assert.Equal(t, 1, conv.calls)
	assert.Equal(t, rules.CommentReasonable, workbooktest.CellValue(t, candidate, workbooktest.SheetName, "E4"))
}

func TestRawCopy_RoundTrip(t *testing.T) {
	input := workbooktest.Reconciliation(t, t.TempDir())
	chain := NewChain(guard.New(t.TempDir()), Entry{
		Descriptor:  domain.StrategyDescriptor{Name: "raw-copy", Capability: domain.CapabilityRawCopy},
		Transformer: RawCopy{},
	})
	out := outputPath(t)

	res := chain.Run(context.Background(), input, out, testParams())
	require.True(t, res.StructurallyOK)

	same, err := files.Equal(input, out)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestDefaultEntries_MissingSheet(t *testing.T) {
	input := workbooktest.WithSheets(t, t.TempDir(), "other.xlsx", "Summary")
	chain := NewChain(guard.New(t.TempDir()), DefaultEntries(&copyConverter{})...)

	params := testParams()
	params.EnableAutomation = true
	res := chain.Run(context.Background(), input, outputPath(t), params)

	assert.False(t, res.StructurallyOK)
	require.ErrorIs(t, res.Err, domain.ErrAllStrategiesFailed)
	assert.Contains(t, res.Err.Error(), workbook.ErrSheetNotFound.Error())
}
