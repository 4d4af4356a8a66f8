package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/storage"
)

var (
	_ storage.JobQueue            = (*Client)(nil)
	_ storage.Locker              = (*Client)(nil)
	_ storage.FailedJobRepository = (*Client)(nil)
)

func TestParseJobMember(t *testing.T) {
	tests := []struct {
		in       string
		wantID   string
		wantPath string
		wantErr  bool
	}{
		{"abc|/inbox/a.xlsx", "abc", "/inbox/a.xlsx", false},
		{"abc|/inbox/a|b.xlsx", "abc", "/inbox/a|b.xlsx", false},
		{"abc", "", "", true},
		{"|/inbox/a.xlsx", "", "", true},
		{"abc|", "", "", true},
	}

	for _, tt := range tests {
		id, path, err := ParseJobMember(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseJobMember(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if id != tt.wantID || path != tt.wantPath {
			t.Errorf("ParseJobMember(%q) = %q, %q, want %q, %q", tt.in, id, path, tt.wantID, tt.wantPath)
		}
	}
}

func TestFormatJobMember_RoundTrip(t *testing.T) {
	id, path, err := ParseJobMember(FormatJobMember("j1", "C:/inbox/report.xlsx"))
	if err != nil || id != "j1" || path != "C:/inbox/report.xlsx" {
		t.Errorf("round trip = %q, %q, %v", id, path, err)
	}
}

func TestClient_Live(t *testing.T) {
	url := os.Getenv("SHEETFIX_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping live redis test. Set SHEETFIX_TEST_REDIS_URL to run.")
	}

	c, err := NewClient(Config{URL: url, Prefix: "sheetfix_test_" + uuid.NewString()[:8]})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	t.Cleanup(func() {
		c.rdb.Del(ctx, c.queueKey(), c.queuedKey(), c.failedIndexKey())
	})

	base := time.Now()
	_ = c.Push(ctx, domain.Job{ID: "2", Path: "b.xlsx", EnqueuedAt: base.Add(time.Second)})
	_ = c.Push(ctx, domain.Job{ID: "1", Path: "a.xlsx", EnqueuedAt: base})
	if err := c.Push(ctx, domain.Job{ID: "3", Path: "a.xlsx", EnqueuedAt: base.Add(2 * time.Second)}); err != nil {
		t.Fatalf("Push duplicate: %v", err)
	}

	if n, _ := c.Len(ctx); n != 2 {
		t.Fatalf("Len = %d, want 2 (duplicate path queued)", n)
	}
	job, err := c.Pop(ctx)
	if err != nil || job == nil || job.Path != "a.xlsx" || job.ID != "1" {
		t.Fatalf("Pop = %+v, %v, want job 1 a.xlsx", job, err)
	}

	// Once popped, the path may be queued again.
	_ = c.Push(ctx, domain.Job{ID: "4", Path: "a.xlsx", EnqueuedAt: base.Add(3 * time.Second)})
	if n, _ := c.Len(ctx); n != 2 {
		t.Fatalf("Len after requeue = %d, want 2", n)
	}

	ok, _ := c.AcquireLock(ctx, "a.xlsx", time.Minute)
	if !ok {
		t.Fatal("first lock should succeed")
	}
	if ok, _ := c.AcquireLock(ctx, "a.xlsx", time.Minute); ok {
		t.Fatal("second lock should fail")
	}
	_ = c.ReleaseLock(ctx, "a.xlsx")

	if err := c.AddFailed(ctx, &domain.FailedJob{Job: *job, ErrorKind: domain.KindExhausted}); err != nil {
		t.Fatalf("AddFailed: %v", err)
	}
	failed, err := c.ListFailed(ctx, 10)
	if err != nil || len(failed) != 1 || failed[0].ErrorKind != domain.KindExhausted {
		t.Fatalf("ListFailed = %+v, %v", failed, err)
	}
	c.rdb.Del(ctx, c.failedKey(job.ID))
}
