package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks finished orchestrator runs by result
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetfix_runs_total",
			Help: "Total number of processing runs",
		},
		[]string{"result", "error_kind"},
	)

	// RunDuration tracks wall time of a run
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetfix_run_duration_seconds",
			Help:    "Processing run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// AttemptsTotal tracks attempts by outcome
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetfix_attempts_total",
			Help: "Total number of attempts",
		},
		[]string{"outcome"},
	)

	// StrategyResults tracks strategy outcomes
	StrategyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetfix_strategy_results_total",
			Help: "Strategy outcomes by strategy",
		},
		[]string{"strategy", "result"},
	)

	// StrategyDuration tracks how long each strategy took
	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetfix_strategy_duration_seconds",
			Help:    "Strategy duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// RepairResults tracks repair outcomes
	RepairResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetfix_repair_results_total",
			Help: "Repair outcomes by repairer",
		},
		[]string{"repairer", "result"},
	)

	// BackupFailures tracks snapshots that could not be written
	BackupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetfix_backup_failures_total",
			Help: "Total number of failed backups",
		},
	)

	// RestoresTotal tracks restores after exhausted runs
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetfix_restores_total",
			Help: "Total number of backup restores",
		},
		[]string{"result"},
	)

	// QueueDepth tracks pending jobs in watch mode
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetfix_queue_depth",
			Help: "Number of jobs waiting to be processed",
		},
	)

	// JobsTotal tracks watch-mode jobs by result
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetfix_jobs_total",
			Help: "Total number of watch jobs",
		},
		[]string{"result"},
	)

	// DBConnectionPoolUsage tracks the percentage of used connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetfix_db_connection_pool_usage_percent",
			Help: "Percentage of used database connections",
		},
	)
)
