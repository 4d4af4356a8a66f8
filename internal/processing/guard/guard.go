// Package guard owns the temp candidates and automation sessions of a run and
// cleans them up between attempts.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// TempMarker appears in every temp candidate name.
const TempMarker = "_temp_"

// Terminator stops lingering automation sessions.
type Terminator interface {
	Name() string
	Terminate(ctx context.Context) error
}

// Guard tracks temp files and terminators. Reset is its only cleanup path.
type Guard struct {
	tempDir     string
	terminators []Terminator

	mu      sync.Mutex
	tracked []string
	resets  int
}

// New creates a guard writing candidates under tempDir (the system temp dir when empty).
func New(tempDir string, terminators ...Terminator) *Guard {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Guard{
		tempDir:     tempDir,
		terminators: terminators,
	}
}

// TempDir returns the directory candidates are created in.
func (g *Guard) TempDir() string {
	return g.tempDir
}

// TempPath returns a fresh, registered candidate path.
func (g *Guard) TempPath(prefix string) string {
	if err := os.MkdirAll(g.tempDir, 0o755); err != nil {
		slog.Warn("Failed to create temp dir", "dir", g.tempDir, "error", err)
	}
	path := filepath.Join(g.tempDir, fmt.Sprintf("%s%s%s.xlsx", prefix, TempMarker, uuid.NewString()))
	g.Track(path)
	return path
}

// Track registers path for deletion on the next Reset.
func (g *Guard) Track(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracked = append(g.tracked, path)
}

// Tracked returns the paths registered since the last Reset.
func (g *Guard) Tracked() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.tracked...)
}

// Resets returns how many times Reset has run.
func (g *Guard) Resets() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resets
}

// Reset terminates automation sessions and deletes tracked temp files.
// Failures are logged; Reset never fails from the caller's point of view.
func (g *Guard) Reset(ctx context.Context) {
	for _, t := range g.terminators {
		if err := t.Terminate(ctx); err != nil {
			slog.Warn("Failed to terminate automation session", "terminator", t.Name(), "error", err)
		}
	}

	g.mu.Lock()
	paths := g.tracked
	g.tracked = nil
	g.resets++
	g.mu.Unlock()

	removed := 0
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case os.IsNotExist(err):
		default:
			slog.Warn("Failed to remove temp file", "path", p, "error", err)
		}
	}
	if removed > 0 {
		slog.Debug("Removed temp files", "count", removed)
	}
}
