package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/sheetfix/internal/infra/storage"
	"github.com/vietddude/sheetfix/internal/processing/metrics"
)

// Thresholds for queue backlog and failed jobs.
const (
	QueueDegraded  = 10
	QueueCritical  = 100
	FailedCritical = 50
)

// CheckFunc pings a dependency such as the database or Redis.
type CheckFunc func(ctx context.Context) error

// Monitor aggregates health status from the queue, the failed job list and
// registered dependencies.
type Monitor struct {
	queue      storage.JobQueue
	failedRepo storage.FailedJobRepository
	checks     map[string]CheckFunc
	interval   time.Duration
	now        func() time.Time
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Either repository may be nil.
func NewMonitor(queue storage.JobQueue, failedRepo storage.FailedJobRepository) *Monitor {
	return &Monitor{
		queue:      queue,
		failedRepo: failedRepo,
		checks:     make(map[string]CheckFunc),
		interval:   10 * time.Second,
		now:        time.Now,
	}
}

// AddCheck registers a dependency check. A failing check makes the system critical.
func (m *Monitor) AddCheck(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = fn
}

// CheckHealth builds a report, reusing the previous one for up to 10s.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering the database and Redis
	if m.lastReport != nil && m.now().Sub(m.lastCheck) < m.interval {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}

	// 1. Queue depth
	if m.queue != nil {
		if depth, err := m.queue.Len(ctx); err == nil {
			report.QueueDepth = depth
			metrics.QueueDepth.Set(float64(depth))
		} else {
			report.SystemStatus = StatusDegraded
		}
	}

	// 2. Failed jobs
	if m.failedRepo != nil {
		if count, err := m.failedRepo.CountFailed(ctx); err == nil {
			report.FailedJobs = count
		} else {
			report.SystemStatus = StatusDegraded
		}
	}

	// 3. Dependencies
	for name, check := range m.checks {
		c := ComponentHealth{Name: name, Status: StatusHealthy}
		if err := check(ctx); err != nil {
			c.Status = StatusCritical
			c.Error = err.Error()
		}
		report.Components[name] = c
		report.SystemStatus = worse(report.SystemStatus, c.Status)
	}

	// Evaluate backlog
	if report.QueueDepth > QueueCritical || report.FailedJobs > FailedCritical {
		report.SystemStatus = StatusCritical
	} else if report.QueueDepth > QueueDegraded || report.FailedJobs > 0 {
		report.SystemStatus = worse(report.SystemStatus, StatusDegraded)
	}

	m.lastCheck = m.now()
	m.lastReport = &report
	return report
}
