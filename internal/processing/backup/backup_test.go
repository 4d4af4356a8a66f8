package backup

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
)

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSnapshot(t *testing.T) {
	input := writeInput(t, "workbook bytes")
	dir := filepath.Join(t.TempDir(), "backups")
	m := NewManager(dir).WithClock(func() time.Time { return fixedNow })

	rec, err := m.Snapshot(input)
	require.NoError(t, err)

	assert.Equal(t, input, rec.OriginalPath)
	assert.Equal(t, filepath.Join(dir, "ledger_backup_20240305-140709.xlsx"), rec.BackupPath)
	assert.Equal(t, fixedNow, rec.CreatedAt)

	same, err := files.Equal(input, rec.BackupPath)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestSnapshot_NeverOverwrites(t *testing.T) {
	input := writeInput(t, "v1")
	m := NewManager(t.TempDir()).WithClock(func() time.Time { return fixedNow })

	first, err := m.Snapshot(input)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(input, []byte("v2"), 0o644))
	second, err := m.Snapshot(input)
	require.NoError(t, err)

	assert.NotEqual(t, first.BackupPath, second.BackupPath)
	assert.Equal(t, "ledger_backup_20240305-140709_1.xlsx", filepath.Base(second.BackupPath))

	data, err := os.ReadFile(first.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestSnapshot_MissingInput(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Snapshot(filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
}

func TestSnapshot_EmptyInput(t *testing.T) {
	input := writeInput(t, "")
	m := NewManager(t.TempDir())
	_, err := m.Snapshot(input)
	require.ErrorIs(t, err, files.ErrEmptyFile)
}

func TestSnapshot_ReadOnlyDir(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	m := NewManager(filepath.Join(dir, "backups"))
	_, err := m.Snapshot(writeInput(t, "data"))
	require.Error(t, err)
}

func TestRestore(t *testing.T) {
	input := writeInput(t, "original")
	m := NewManager(t.TempDir())

	rec, err := m.Snapshot(input)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(input, []byte("corrupted"), 0o644))
	require.NoError(t, m.Restore(rec, ""))

	data, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	slot := filepath.Join(t.TempDir(), "out", "ledger_processed.xlsx")
	require.NoError(t, m.Restore(rec, slot))
	data, err = os.ReadFile(slot)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestRestore_Empty(t *testing.T) {
	m := NewManager(t.TempDir())
	require.ErrorIs(t, m.Restore(domain.BackupRecord{}, ""), ErrNoBackup)
}
