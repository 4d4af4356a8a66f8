package guard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTerminator struct {
	calls int
	err   error
}

func (f *fakeTerminator) Name() string { return "fake" }

func (f *fakeTerminator) Terminate(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestTempPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	g := New(dir)

	a := g.TempPath("strategy")
	b := g.TempPath("strategy")

	assert.NotEqual(t, a, b)
	assert.Equal(t, dir, filepath.Dir(a))
	assert.True(t, strings.HasPrefix(filepath.Base(a), "strategy_temp_"))
	assert.Equal(t, ".xlsx", filepath.Ext(a))
	assert.Equal(t, []string{a, b}, g.Tracked())

	_, err := os.Stat(dir)
	require.NoError(t, err, "temp dir is created on demand")
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	term := &fakeTerminator{}
	g := New(dir, term)

	written := g.TempPath("repair")
	require.NoError(t, os.WriteFile(written, []byte("x"), 0o644))
	missing := g.TempPath("repair")

	g.Reset(context.Background())

	assert.Equal(t, 1, term.calls)
	assert.Equal(t, 1, g.Resets())
	assert.Empty(t, g.Tracked())
	assert.NoFileExists(t, written)
	assert.NoFileExists(t, missing)
}

func TestReset_Idempotent(t *testing.T) {
	term := &fakeTerminator{err: errors.New("no such process")}
	g := New(t.TempDir(), term)

	g.Reset(context.Background())
	g.Reset(context.Background())

	assert.Equal(t, 2, term.calls)
	assert.Equal(t, 2, g.Resets())
}

func TestReset_KeepsUntrackedFiles(t *testing.T) {
	dir := t.TempDir()
	g := New(dir)

	kept := filepath.Join(dir, "report.xlsx")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))

	g.Reset(context.Background())
	assert.FileExists(t, kept)
}

func TestSweeper(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	stale := filepath.Join(dir, "strategy_temp_1.xlsx")
	fresh := filepath.Join(dir, "strategy_temp_2.xlsx")
	other := filepath.Join(dir, "input.xlsx")
	for _, p := range []string{stale, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	s := NewSweeper(dir, time.Hour)
	assert.Equal(t, 1, s.Sweep())

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestSweeper_StartDisabled(t *testing.T) {
	s := NewSweeper(t.TempDir(), 0)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when disabled")
	}
}
