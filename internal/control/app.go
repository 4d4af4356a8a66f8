package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/sheetfix/internal/core/config"
	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/automation"
	redisclient "github.com/vietddude/sheetfix/internal/infra/redis"
	"github.com/vietddude/sheetfix/internal/infra/storage"
	"github.com/vietddude/sheetfix/internal/infra/storage/memory"
	"github.com/vietddude/sheetfix/internal/infra/storage/postgres"
	"github.com/vietddude/sheetfix/internal/processing/guard"
	"github.com/vietddude/sheetfix/internal/processing/health"
	"github.com/vietddude/sheetfix/internal/processing/orchestrator"
	"github.com/vietddude/sheetfix/internal/processing/progress"
	"github.com/vietddude/sheetfix/internal/processing/repair"
	"github.com/vietddude/sheetfix/internal/processing/strategy"
	"github.com/vietddude/sheetfix/internal/processing/validate"
	"github.com/vietddude/sheetfix/internal/processing/watch"
)

// App wires the pipeline to its storage and runs it once per file or as an
// inbox service.
type App struct {
	cfg    *config.AppConfig
	params domain.TransformParams

	guard        *guard.Guard
	orchestrator *orchestrator.Orchestrator

	runs   storage.RunRepository
	queue  storage.JobQueue
	locker storage.Locker
	failed storage.FailedJobRepository

	db          *postgres.DB
	redisClient *redisclient.Client
	healthMon   *health.Monitor

	log *slog.Logger
}

// NewApp creates an App with all dependencies initialized. params are the
// run parameters after command-line overrides.
func NewApp(ctx context.Context, cfg *config.AppConfig, params domain.TransformParams) (*App, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, params: params.Clone(), log: slog.Default()}

	// 1. Initialize Storage
	store := memory.NewMemoryStorage()
	memQueue := memory.NewQueue(store)
	a.runs = memory.NewRunRepo(store)
	a.queue, a.locker, a.failed = memQueue, memQueue, memQueue

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}
		a.db = db
		a.runs = postgres.NewRunRepo(db)
		a.failed = postgres.NewFailedJobRepo(db)
		a.log.Info("Using PostgreSQL storage")
	} else {
		a.log.Debug("Using Memory storage")
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		a.queue, a.locker = client, client
		if a.db == nil {
			a.failed = client
		}
		a.log.Info("Using Redis job queue")
	}

	// 2. Initialize Pipeline
	office := automation.NewOffice(cfg.Automation, nil)
	var terminators []guard.Terminator
	if params.EnableAutomation {
		terminators = append(terminators, office.Terminator())
	}
	a.guard = guard.New(cfg.TempDirectory, terminators...)

	strategies := strategy.NewChain(a.guard, strategy.DefaultEntries(office)...)
	repairs := repair.NewChain(a.guard, repair.DefaultEntries(office, repair.ExternalTool{Command: cfg.ExternalTool.Command})...)
	checkers := func(p domain.TransformParams) orchestrator.Checker {
		opts := []validate.Option{validate.WithStrict(cfg.Validation.Strict)}
		if cfg.Validation.Recalculate && p.EnableAutomation {
			opts = append(opts, validate.WithSecondary(automation.NewRecalcChecker(office, p.MaxAutomationRetries)))
		}
		return validate.New(p.SheetName, opts...)
	}

	a.orchestrator = orchestrator.New(strategies, repairs, a.guard, checkers,
		orchestrator.WithRunRepository(a.runs),
	)

	// 3. Initialize Health Monitor
	a.healthMon = health.NewMonitor(a.queue, a.failed)
	if a.db != nil {
		a.healthMon.AddCheck("database", a.db.Health)
	}
	if a.redisClient != nil {
		a.healthMon.AddCheck("redis", a.redisClient.Health)
	}
	if params.EnableAutomation {
		binary := office.Binary()
		a.healthMon.AddCheck("automation", func(ctx context.Context) error {
			_, err := exec.LookPath(binary)
			return err
		})
	}

	return a, nil
}

// Params returns the run parameters.
func (a *App) Params() domain.TransformParams {
	return a.params.Clone()
}

// Runs returns the run ledger.
func (a *App) Runs() storage.RunRepository {
	return a.runs
}

// FailedJobs returns the failed job list.
func (a *App) FailedJobs() storage.FailedJobRepository {
	return a.failed
}

// Queue returns the watch job queue.
func (a *App) Queue() storage.JobQueue {
	return a.queue
}

// Health returns the health monitor.
func (a *App) Health() *health.Monitor {
	return a.healthMon
}

// Process runs the pipeline for one input and streams events to sink.
func (a *App) Process(ctx context.Context, input string, sink progress.Sink) domain.ProcessingOutcome {
	return a.orchestrator.Run(ctx, input, a.params, sink)
}

// Watch serves the inbox until ctx is done. It runs the inbox watcher, one
// job worker, the temp sweeper and the health server.
func (a *App) Watch(ctx context.Context, sink progress.Sink) error {
	if a.cfg.Watch.Inbox == "" {
		return errors.New("watch.inbox is not configured")
	}

	g, gctx := errgroup.WithContext(ctx)

	inbox := watch.NewInbox(a.cfg.Watch.Inbox, a.cfg.Watch.Debounce, a.queue)
	g.Go(func() error { return inbox.Run(gctx) })

	worker := watch.NewWorker(
		watch.WorkerConfig{PollInterval: a.cfg.Watch.PollInterval, LockTTL: a.cfg.Watch.LockTTL},
		a.queue, a.locker, a.failed, a.orchestrator, a.params, sink,
	)
	g.Go(func() error { return worker.Run(gctx) })

	if a.cfg.Watch.TempMaxAge > 0 {
		sweeper := guard.NewSweeper(a.guard.TempDir(), a.cfg.Watch.TempMaxAge)
		g.Go(func() error {
			sweeper.Start(gctx)
			return nil
		})
	}

	if a.db != nil {
		a.db.StartMetricsCollector(gctx)
	}

	if a.cfg.Server.Port > 0 {
		server := health.NewServer(a.healthMon, a.cfg.Server.Port)
		g.Go(func() error {
			a.log.Info("Health server listening", "port", a.cfg.Server.Port)
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	a.log.Info("Watching for workbooks", "inbox", a.cfg.Watch.Inbox, "output", a.params.OutputDirectory)
	return g.Wait()
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}
