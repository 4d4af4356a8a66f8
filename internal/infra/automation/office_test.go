package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/sheetfix/internal/infra/workbook/workbooktest"
)

// fakeRunner emulates soffice --convert-to by copying the source into --outdir,
// and pkill/taskkill by returning the configured exit codes.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	failures []error
	noOutput bool
	killErr  error
}

type exitError int

func (e exitError) Error() string { return "exit status" }
func (e exitError) ExitCode() int { return int(e) }

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))

	if name == "pkill" || name == "taskkill" {
		return nil, r.killErr
	}

	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return nil, err
	}
	if r.noOutput {
		return nil, nil
	}

	var outDir string
	for i, a := range args {
		if a == "--outdir" && i+1 < len(args) {
			outDir = args[i+1]
		}
	}
	src := args[len(args)-1]
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return nil, os.WriteFile(filepath.Join(outDir, stem+".xlsx"), data, 0o644)
}

func (r *fakeRunner) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newTestOffice(r *fakeRunner) *Office {
	o := NewOffice(Config{RetryDelay: time.Millisecond}, r)
	o.terminator.goos = "linux"
	o.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return o
}

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "input.xlsx")
	if err := os.WriteFile(src, []byte("workbook"), 0o644); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestConvert(t *testing.T) {
	r := &fakeRunner{}
	o := newTestOffice(r)
	src := writeSource(t)
	dst := filepath.Join(t.TempDir(), "out", "converted.xlsx")

	if err := o.Convert(context.Background(), src, dst, 0); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(data) != "workbook" {
		t.Errorf("unexpected output %q", data)
	}
	if got := r.count("soffice --headless"); got != 1 {
		t.Errorf("expected 1 soffice call, got %d", got)
	}
}

func TestConvert_RetriesTransient(t *testing.T) {
	r := &fakeRunner{failures: []error{errors.New("permission denied"), errors.New("file is locked")}}
	o := newTestOffice(r)
	src := writeSource(t)
	dst := filepath.Join(t.TempDir(), "converted.xlsx")

	if err := o.Convert(context.Background(), src, dst, 2); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if got := r.count("soffice"); got != 3 {
		t.Errorf("expected 3 soffice calls, got %d", got)
	}
	// The lock failure restarts the session before retrying.
	if got := r.count("pkill -TERM"); got != 2 {
		t.Errorf("expected one graceful kill per process name, got %d", got)
	}
}

func TestConvert_StopsOnFatal(t *testing.T) {
	r := &fakeRunner{failures: []error{errors.New("source file could not be loaded")}}
	o := newTestOffice(r)

	err := o.Convert(context.Background(), writeSource(t), filepath.Join(t.TempDir(), "x.xlsx"), 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := r.count("soffice"); got != 1 {
		t.Errorf("expected a single call for a fatal error, got %d", got)
	}
}

func TestConvert_RetryBudget(t *testing.T) {
	r := &fakeRunner{noOutput: true}
	o := newTestOffice(r)

	err := o.Convert(context.Background(), writeSource(t), filepath.Join(t.TempDir(), "x.xlsx"), 1)
	if !errors.Is(err, ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
	if got := r.count("soffice"); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestTerminate(t *testing.T) {
	t.Run("nothing running", func(t *testing.T) {
		r := &fakeRunner{killErr: exitError(1)}
		term := NewProcessTerminator([]string{"soffice.bin"}, 0, r)
		term.goos = "linux"

		if err := term.Terminate(context.Background()); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if got := r.count("pkill -KILL"); got != 0 {
			t.Errorf("forced kill should be skipped, got %d", got)
		}
	})

	t.Run("graceful then forced", func(t *testing.T) {
		r := &fakeRunner{}
		term := NewProcessTerminator([]string{"soffice.bin"}, 0, r)
		term.goos = "linux"

		if err := term.Terminate(context.Background()); err != nil {
			t.Fatalf("Terminate failed: %v", err)
		}
		if r.count("pkill -TERM -x soffice.bin") != 1 || r.count("pkill -KILL -x soffice.bin") != 1 {
			t.Errorf("unexpected calls: %v", r.calls)
		}
	})

	t.Run("windows", func(t *testing.T) {
		r := &fakeRunner{}
		term := NewProcessTerminator([]string{"soffice"}, 0, r)
		term.goos = "windows"

		if err := term.Terminate(context.Background()); err != nil {
			t.Fatalf("Terminate failed: %v", err)
		}
		if r.count("taskkill /F /IM soffice.exe") != 1 {
			t.Errorf("unexpected calls: %v", r.calls)
		}
	})

	t.Run("tool failure", func(t *testing.T) {
		r := &fakeRunner{killErr: exitError(3)}
		term := NewProcessTerminator([]string{"soffice.bin"}, 0, r)
		term.goos = "linux"

		if err := term.Terminate(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRecalcChecker(t *testing.T) {
	r := &fakeRunner{}
	c := NewRecalcChecker(newTestOffice(r), 0)

	clean := workbooktest.WithSheets(t, t.TempDir(), "clean.xlsx", "Data")
	ok, reason, err := c.Check(context.Background(), clean)
	if err != nil || !ok {
		t.Fatalf("expected clean workbook to pass, got ok=%v reason=%q err=%v", ok, reason, err)
	}

	broken := workbooktest.WithCells(t, t.TempDir(), "broken.xlsx", "Data", map[string]any{"A1": 4, "B2": "#REF!"})
	ok, reason, err = c.Check(context.Background(), broken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || !strings.Contains(reason, "#REF!") {
		t.Errorf("expected marker to be reported, got ok=%v reason=%q", ok, reason)
	}
}
