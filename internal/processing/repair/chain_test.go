package repair

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
	"github.com/vietddude/sheetfix/internal/infra/workbook/workbooktest"
	"github.com/vietddude/sheetfix/internal/processing/guard"
)

func writes(content string, calls *[]string, name string) Repairer {
	return RepairerFunc(func(ctx context.Context, src, candidate string, params domain.TransformParams) error {
		*calls = append(*calls, name)
		return os.WriteFile(candidate, []byte(content), 0o644)
	})
}

func fails(calls *[]string, name string) Repairer {
	return RepairerFunc(func(ctx context.Context, src, candidate string, params domain.TransformParams) error {
		*calls = append(*calls, name)
		return errors.New(name + " broke")
	})
}

func entry(name string, c domain.Capability, r Repairer) Entry {
	return Entry{Descriptor: domain.RepairDescriptor{Name: name, Capability: c}, Repairer: r}
}

// acceptContent accepts candidates whose bytes equal want.
func acceptContent(want string, checks *int) Acceptor {
	return func(ctx context.Context, path string) domain.ValidationResult {
		*checks++
		data, _ := os.ReadFile(path)
		if string(data) != want {
			return domain.Invalid("unexpected content " + string(data))
		}
		return domain.ValidationResult{Valid: true}
	}
}

func TestChain_FirstAcceptedWins(t *testing.T) {
	var calls []string
	checks := 0
	g := guard.New(t.TempDir())
	chain := NewChain(g,
		entry("a", domain.CapabilityTabularExtract, fails(&calls, "a")),
		entry("b", domain.CapabilityStructuralRebuild, writes("good", &calls, "b")),
		entry("c", domain.CapabilityExternalTool, writes("good", &calls, "c")),
	)

	res := chain.Run(context.Background(), "broken.xlsx", domain.TransformParams{}, acceptContent("good", &checks))

	require.True(t, res.OK)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 1, checks, "validator runs only on structurally sound candidates")
	assert.Equal(t, "b", res.Repairer.Name)
	assert.Equal(t, 2, res.Repairer.Ordinal)
	assert.Contains(t, g.Tracked(), res.Path)
}

func TestChain_RejectedCandidateTriesNext(t *testing.T) {
	var calls []string
	checks := 0
	chain := NewChain(guard.New(t.TempDir()),
		entry("a", domain.CapabilityTabularExtract, writes("still broken", &calls, "a")),
		entry("b", domain.CapabilityStructuralRebuild, writes("good", &calls, "b")),
	)

	res := chain.Run(context.Background(), "broken.xlsx", domain.TransformParams{}, acceptContent("good", &checks))

	require.True(t, res.OK)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 2, checks)
}

func TestChain_AllFail(t *testing.T) {
	var calls []string
	checks := 0
	chain := NewChain(guard.New(t.TempDir()),
		entry("a", domain.CapabilityTabularExtract, fails(&calls, "a")),
		entry("b", domain.CapabilityStructuralRebuild, writes("bad", &calls, "b")),
	)

	res := chain.Run(context.Background(), "broken.xlsx", domain.TransformParams{}, acceptContent("good", &checks))

	assert.False(t, res.OK)
	require.ErrorIs(t, res.Err, domain.ErrRepairFailed)
	assert.Equal(t, domain.KindRepairFailed, domain.KindOf(res.Err))
	assert.Contains(t, res.Err.Error(), "unexpected content bad")
}

func TestChain_NilAcceptor(t *testing.T) {
	var calls []string
	chain := NewChain(guard.New(t.TempDir()),
		entry("a", domain.CapabilityTabularExtract, writes("anything", &calls, "a")),
	)
	res := chain.Run(context.Background(), "x.xlsx", domain.TransformParams{}, nil)
	require.True(t, res.OK)
}

func TestChain_Panic(t *testing.T) {
	var calls []string
	chain := NewChain(guard.New(t.TempDir()),
		entry("a", domain.CapabilityTabularExtract, RepairerFunc(
			func(ctx context.Context, src, candidate string, params domain.TransformParams) error {
				panic("index out of range")
			})),
		entry("b", domain.CapabilityStructuralRebuild, writes("ok", &calls, "b")),
	)
	res := chain.Run(context.Background(), "x.xlsx", domain.TransformParams{}, nil)
	require.True(t, res.OK)
	assert.Equal(t, "b", res.Repairer.Name)
}

func TestChain_AutomationGating(t *testing.T) {
	var calls []string
	g := guard.New(t.TempDir())
	chain := NewChain(g,
		entry("auto", domain.CapabilityAutomationRepair, writes("ok", &calls, "auto")),
		entry("tab", domain.CapabilityTabularExtract, writes("ok", &calls, "tab")),
	)

	res := chain.Run(context.Background(), "x.xlsx", domain.TransformParams{}, nil)
	require.True(t, res.OK)
	assert.Equal(t, []string{"tab"}, calls)
	assert.Zero(t, g.Resets())

	calls = nil
	res = chain.Run(context.Background(), "x.xlsx", domain.TransformParams{EnableAutomation: true}, nil)
	require.True(t, res.OK)
	assert.Equal(t, []string{"auto"}, calls)
	assert.Equal(t, 1, g.Resets())
}

func TestDefaultEntries_Order(t *testing.T) {
	chain := NewChain(guard.New(t.TempDir()), DefaultEntries(nil, ExternalTool{})...)
	var names []string
	for _, d := range chain.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"automation-repair", "tabular-extract", "structural-rebuild", "external-tool"}, names)
}

func TestTabularExtract(t *testing.T) {
	src := workbooktest.Reconciliation(t, t.TempDir())
	candidate := filepath.Join(t.TempDir(), "candidate.xlsx")

	require.NoError(t, (&TabularExtract{}).Repair(context.Background(), src, candidate, domain.TransformParams{}))

	f, err := excelize.OpenFile(candidate)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{workbooktest.SheetName, "Notes"}, f.GetSheetList())
	v, _ := f.GetCellValue(workbooktest.SheetName, "B4")
	assert.Equal(t, "100", v)
	typ, _ := f.GetCellType(workbooktest.SheetName, "B4")
	assert.NotEqual(t, excelize.CellTypeSharedString, typ, "numbers stay numeric")
	line, _ := f.GetCellValue(workbooktest.SheetName, "A4")
	assert.Equal(t, "1010", line)
}

func TestTabularExtract_PlaceholderForUnreadableSheet(t *testing.T) {
	src := workbooktest.Reconciliation(t, t.TempDir())
	candidate := filepath.Join(t.TempDir(), "candidate.xlsx")

	te := &TabularExtract{read: func(f *excelize.File, sheet string) ([][]string, error) {
		if sheet == "Notes" {
			return nil, errors.New("corrupt sheet xml")
		}
		return readRaw(f, sheet)
	}}
	require.NoError(t, te.Repair(context.Background(), src, candidate, domain.TransformParams{}))

	f, err := excelize.OpenFile(candidate)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{workbooktest.SheetName, "Notes"}, f.GetSheetList())
	rows, err := f.GetRows("Notes")
	require.NoError(t, err)
	assert.Empty(t, rows)
	v, _ := f.GetCellValue(workbooktest.SheetName, "D4")
	assert.Equal(t, "Timing difference", v)
}

func TestTabularExtract_NothingRecoverable(t *testing.T) {
	src := workbooktest.WithSheets(t, t.TempDir(), "one.xlsx", "Only")
	te := &TabularExtract{read: func(f *excelize.File, sheet string) ([][]string, error) {
		return nil, errors.New("corrupt")
	}}
	err := te.Repair(context.Background(), src, filepath.Join(t.TempDir(), "c.xlsx"), domain.TransformParams{})
	require.Error(t, err)
}

func TestStructuralRebuild(t *testing.T) {
	src := workbooktest.Reconciliation(t, t.TempDir())
	candidate := filepath.Join(t.TempDir(), "candidate.xlsx")

	require.NoError(t, (&StructuralRebuild{}).Repair(context.Background(), src, candidate, domain.TransformParams{}))

	f, err := excelize.OpenFile(candidate)
	require.NoError(t, err)
	defer f.Close()

	merged, err := f.GetMergeCells(workbooktest.SheetName)
	require.NoError(t, err)
	assert.Empty(t, merged)

	style, err := f.GetCellStyle(workbooktest.SheetName, "A3")
	require.NoError(t, err)
	assert.Zero(t, style, "formatting is dropped")

	v, _ := f.GetCellValue(workbooktest.SheetName, "A1")
	assert.Equal(t, "Agency reconciliation", v)
}

func TestStructuralRebuild_Unopenable(t *testing.T) {
	src := filepath.Join(t.TempDir(), "garbage.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("garbage"), 0o644))

	err := (&StructuralRebuild{}).Repair(context.Background(), src, filepath.Join(t.TempDir(), "c.xlsx"), domain.TransformParams{})
	require.Error(t, err)
}

type recordingRunner struct {
	args  []string
	write func(args []string) error
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.args = append([]string{name}, args...)
	if r.write != nil {
		return nil, r.write(r.args)
	}
	return nil, nil
}

func TestExternalTool(t *testing.T) {
	src := workbooktest.WithSheets(t, t.TempDir(), "input.xlsx", "Data")

	t.Run("writes output", func(t *testing.T) {
		candidate := filepath.Join(t.TempDir(), "candidate.xlsx")
		runner := &recordingRunner{write: func(args []string) error {
			return files.Copy(args[2], args[4])
		}}
		tool := ExternalTool{Command: []string{"repair-tool", "--in", "{input}", "--out", "{output}"}, Runner: runner}

		require.NoError(t, tool.Repair(context.Background(), src, candidate, domain.TransformParams{}))
		assert.Equal(t, []string{"repair-tool", "--in", src, "--out", candidate}, runner.args)
		assert.FileExists(t, candidate)
	})

	t.Run("writes into outdir", func(t *testing.T) {
		candidate := filepath.Join(t.TempDir(), "candidate.xlsx")
		runner := &recordingRunner{write: func(args []string) error {
			outdir := args[len(args)-2]
			return files.Copy(args[len(args)-1], filepath.Join(outdir, "input.xlsx"))
		}}
		tool := ExternalTool{Command: []string{"soffice", "--convert-to", "xlsx", "--outdir", "{outdir}", "{input}"}, Runner: runner}

		require.NoError(t, tool.Repair(context.Background(), src, candidate, domain.TransformParams{}))
		assert.FileExists(t, candidate)
		assert.True(t, strings.HasPrefix(filepath.Base(runner.args[4]), "sheetfix-tool-"))
	})

	t.Run("no output", func(t *testing.T) {
		tool := ExternalTool{Command: []string{"noop"}, Runner: &recordingRunner{}}
		err := tool.Repair(context.Background(), src, filepath.Join(t.TempDir(), "c.xlsx"), domain.TransformParams{})
		require.Error(t, err)
	})

	t.Run("not configured", func(t *testing.T) {
		err := ExternalTool{}.Repair(context.Background(), src, "c.xlsx", domain.TransformParams{})
		require.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestAutomationRepair_NotConfigured(t *testing.T) {
	err := AutomationRepair{}.Repair(context.Background(), "x.xlsx", "y.xlsx", domain.TransformParams{})
	require.ErrorIs(t, err, ErrNotConfigured)
}
