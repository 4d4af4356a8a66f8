package guard

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sweeper deletes temp candidates left behind by runs that never reached Reset.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

// NewSweeper creates a sweeper for dir removing candidates older than maxAge.
func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Sweeper{dir: dir, maxAge: maxAge, now: time.Now}
}

// Start runs the sweep loop until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	if s.maxAge <= 0 {
		return
	}

	interval := min(s.maxAge/2, 10*time.Minute)
	interval = max(interval, 10*time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Sweep()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes stale candidates once and returns how many were deleted.
func (s *Sweeper) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Warn("Failed to list temp dir", "dir", s.dir, "error", err)
		return 0
	}

	threshold := s.now().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), TempMarker) || !strings.HasSuffix(e.Name(), ".xlsx") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(threshold) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove stale candidate", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Swept stale temp candidates", "count", removed)
	}
	return removed
}
