package config

import (
	"time"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/automation"
	redisclient "github.com/vietddude/sheetfix/internal/infra/redis"
	"github.com/vietddude/sheetfix/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Processing    domain.TransformParams `yaml:"processing"`
	Validation    ValidationConfig       `yaml:"validation"`
	Automation    automation.Config      `yaml:"automation"`
	ExternalTool  ExternalToolConfig     `yaml:"external_tool"`
	TempDirectory string                 `yaml:"temp_directory"`
	Server        ServerConfig           `yaml:"server"`
	Redis         redisclient.Config     `yaml:"redis"`
	Logging       LoggingConfig          `yaml:"logging"`
	Database      postgres.Config        `yaml:"database"`
	Watch         WatchConfig            `yaml:"watch"`
}

// ValidationConfig controls the post-transform validator.
type ValidationConfig struct {
	// Recalculate re-opens artifacts in the automation surface and scans
	// for formula errors. Requires processing.enable_automation.
	Recalculate bool `yaml:"recalculate"`
	// Strict rejects artifacts when the recalculation check itself fails.
	Strict bool `yaml:"strict"`
}

// ExternalToolConfig configures the last-resort repair command.
// Arguments may use {input}, {output} and {outdir}.
type ExternalToolConfig struct {
	Command []string `yaml:"command"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables the server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	File       string `yaml:"file"`  // empty = stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// WatchConfig holds settings for watch mode.
type WatchConfig struct {
	Inbox        string        `yaml:"inbox"`
	Debounce     time.Duration `yaml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	TempMaxAge   time.Duration `yaml:"temp_max_age"` // 0 disables the temp sweeper
}
