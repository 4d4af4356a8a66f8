package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vietddude/sheetfix/internal/infra/workbook"
)

// RecalcChecker re-opens a workbook through the suite, which recalculates
// every formula on load, and scans the result for formula error markers.
type RecalcChecker struct {
	office  *Office
	retries int
}

// NewRecalcChecker creates a checker using office.
func NewRecalcChecker(office *Office, retries int) *RecalcChecker {
	return &RecalcChecker{office: office, retries: retries}
}

// Check reports false with the marker location when recalculation surfaces
// an error value. err is set only when the check itself could not run.
func (c *RecalcChecker) Check(ctx context.Context, path string) (bool, string, error) {
	dir, err := os.MkdirTemp("", "sheetfix-recalc-*")
	if err != nil {
		return false, "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	recalculated := filepath.Join(dir, filepath.Base(path))
	if err := c.office.Convert(ctx, path, recalculated, c.retries); err != nil {
		return false, "", err
	}

	f, err := workbook.Open(recalculated)
	if err != nil {
		return false, "", err
	}
	defer f.Close()

	if loc, found := workbook.FindErrorMarker(f); found {
		return false, "formula error at " + loc, nil
	}
	return true, "", nil
}
