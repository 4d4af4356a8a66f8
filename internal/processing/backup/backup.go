// Package backup snapshots input workbooks and restores them after failed runs.
package backup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/files"
)

// TimestampLayout formats backup and output timestamps.
const TimestampLayout = "20060102-150405"

// ErrNoBackup is returned when Restore is given an empty record.
var ErrNoBackup = errors.New("no backup to restore")

// Manager writes snapshots into a single directory and never overwrites one.
type Manager struct {
	dir string
	now func() time.Time
}

// NewManager creates a manager writing into dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// WithClock overrides the clock used for snapshot names.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Snapshot copies path byte for byte to {dir}/{stem}_backup_{timestamp}{ext}.
func (m *Manager) Snapshot(path string) (domain.BackupRecord, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return domain.BackupRecord{}, fmt.Errorf("failed to create backup dir: %w", err)
	}

	createdAt := m.now()
	dest, err := m.freeName(path, createdAt)
	if err != nil {
		return domain.BackupRecord{}, err
	}

	if err := files.Copy(path, dest); err != nil {
		return domain.BackupRecord{}, fmt.Errorf("failed to snapshot %s: %w", path, err)
	}

	slog.Info("Backup created", "original", path, "backup", dest)
	return domain.BackupRecord{
		OriginalPath: path,
		BackupPath:   dest,
		CreatedAt:    createdAt,
	}, nil
}

// Restore copies the snapshot over dest, or over the original path when dest is empty.
func (m *Manager) Restore(record domain.BackupRecord, dest string) error {
	if record.Empty() {
		return ErrNoBackup
	}
	if dest == "" {
		dest = record.OriginalPath
	}
	if err := files.Copy(record.BackupPath, dest); err != nil {
		return fmt.Errorf("failed to restore %s: %w", record.BackupPath, err)
	}
	slog.Info("Backup restored", "backup", record.BackupPath, "dest", dest)
	return nil
}

func (m *Manager) freeName(path string, at time.Time) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	base := fmt.Sprintf("%s_backup_%s", stem, at.Format(TimestampLayout))

	for i := 0; i < 1000; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		candidate := filepath.Join(m.dir, name)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free backup name for %s in %s", stem, m.dir)
}
