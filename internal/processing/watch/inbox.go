// Package watch turns an inbox directory into a queue of processing jobs.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/storage"
)

// Eligible reports whether a file name in the inbox should be processed.
// Office lock files and the pipeline's own outputs are skipped.
func Eligible(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	if strings.Contains(base, "_processed_") || strings.Contains(base, "_backup_") || strings.Contains(base, "_temp_") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".xlsx")
}

// Inbox watches a directory and enqueues a job once a workbook has been
// quiet for the debounce window.
type Inbox struct {
	dir      string
	debounce time.Duration
	queue    storage.JobQueue
	now      func() time.Time
	log      *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewInbox creates an inbox watcher for dir.
func NewInbox(dir string, debounce time.Duration, queue storage.JobQueue) *Inbox {
	return &Inbox{
		dir:      dir,
		debounce: debounce,
		queue:    queue,
		now:      time.Now,
		log:      slog.Default().With("component", "inbox", "dir", dir),
		timers:   make(map[string]*time.Timer),
	}
}

// Run enqueues existing workbooks, then watches for new ones until ctx is done.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}

	if _, err := in.Scan(ctx); err != nil {
		in.log.Warn("Initial inbox scan failed", "error", err)
	}
	in.log.Info("Watching inbox")

	defer in.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				in.touch(ctx, ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.log.Warn("Watcher error", "error", err)
		}
	}
}

// Scan enqueues every eligible workbook currently in the inbox.
func (in *Inbox) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !Eligible(e.Name()) {
			continue
		}
		if err := in.enqueue(ctx, filepath.Join(in.dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// touch restarts the debounce timer for path.
func (in *Inbox) touch(ctx context.Context, path string) {
	if !Eligible(path) {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if t, ok := in.timers[path]; ok {
		t.Stop()
	}
	in.timers[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.timers, path)
		in.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			return
		}
		if err := in.enqueue(ctx, path); err != nil {
			in.log.Error("Failed to enqueue job", "path", path, "error", err)
		}
	})
}

func (in *Inbox) enqueue(ctx context.Context, path string) error {
	job := domain.Job{ID: uuid.NewString(), Path: path, EnqueuedAt: in.now()}
	if err := in.queue.Push(ctx, job); err != nil {
		return err
	}
	in.log.Info("Job enqueued", "path", path, "job", job.ID)
	return nil
}

func (in *Inbox) stopTimers() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for path, t := range in.timers {
		t.Stop()
		delete(in.timers, path)
	}
}
