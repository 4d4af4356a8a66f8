package orchestrator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/processing/backup"
)

// WorkbookExt is the only accepted input extension, compared case-insensitively.
const WorkbookExt = ".xlsx"

// ValidateInput rejects inputs that are missing, not regular files or not workbooks.
func ValidateInput(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.NewValidationError("not-found")
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewValidationError("not-found")
	}
	if err != nil {
		return domain.NewValidationError(fmt.Sprintf("unreadable: %v", err))
	}
	if !info.Mode().IsRegular() {
		return domain.NewValidationError("not-a-file")
	}
	if !strings.EqualFold(filepath.Ext(path), WorkbookExt) {
		return domain.NewValidationError("bad-extension")
	}
	return nil
}

// DeriveOutputPath returns {root}/{stem}_processed_{YYYYMMDD-HHMMSS}{ext}.
func DeriveOutputPath(root, input string, now time.Time) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(root, fmt.Sprintf("%s_processed_%s%s", stem, now.Format(backup.TimestampLayout), ext))
}

// FreeOutputPath returns DeriveOutputPath, or the first free
// {stem}_processed_{ts}_{n}{ext} when that slot is already taken.
func FreeOutputPath(root, input string, now time.Time) (string, error) {
	base := DeriveOutputPath(root, input, now)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; i < 1000; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free output name for %s in %s", filepath.Base(input), root)
}

// BackupDir returns the backup directory for params, defaulting to
// {output_directory}/backups.
func BackupDir(params domain.TransformParams) string {
	if params.BackupDirectory != "" {
		return params.BackupDirectory
	}
	return filepath.Join(params.OutputDirectory, "backups")
}
