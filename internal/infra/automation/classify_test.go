package automation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("Error: source file could not be loaded"), ActionFatal},
		{errors.New("open /x.xlsx: no such file or directory"), ActionFatal},
		{fmt.Errorf("exec: %w", exec.ErrNotFound), ActionFatal},
		{context.Canceled, ActionFatal},
		{errors.New("Error: no export filter for /tmp/out found"), ActionFatal},
		{errors.New("User installation could not be completed"), ActionRestart},
		{errors.New("file is locked for editing"), ActionRestart},
		{errors.New("The process cannot access the file because it is being used by another process"), ActionRestart},
		{fmt.Errorf("%w: stat out.xlsx: no such file or directory", ErrNoOutput), ActionRestart},
		{errors.New("permission denied"), ActionRetry},
		{context.DeadlineExceeded, ActionRetry},
		{errors.New("signal: segmentation fault"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}
