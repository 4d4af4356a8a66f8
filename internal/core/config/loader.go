package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/infra/automation"
)

// DefaultSheetName is the reconciliation sheet processed when none is configured.
const DefaultSheetName = "SF132 to SF133 Reconciliation"

// Load reads configuration from a YAML file. Unknown keys are rejected.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := seeded()
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.UnmarshalStrict([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	cfg := seeded()
	applyDefaults(&cfg)
	return &cfg
}

// seeded presets fields whose zero value is a valid explicit setting, so a
// file that sets them to 0 keeps the 0.
func seeded() AppConfig {
	var cfg AppConfig
	cfg.Processing.MaxAutomationRetries = 3
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	p := &cfg.Processing
	if p.SheetName == "" {
		p.SheetName = DefaultSheetName
	}
	if p.HeaderRow == 0 {
		p.HeaderRow = 9
	}
	if p.OutputDirectory == "" {
		p.OutputDirectory = "output"
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}

	def := automation.DefaultConfig()
	a := &cfg.Automation
	if a.Binary == "" {
		a.Binary = def.Binary
	}
	if a.Timeout == 0 {
		a.Timeout = def.Timeout
	}
	if a.RetryDelay == 0 {
		a.RetryDelay = def.RetryDelay
	}
	if a.GracePeriod == 0 {
		a.GracePeriod = def.GracePeriod
	}
	if len(a.ProcessNames) == 0 {
		a.ProcessNames = def.ProcessNames
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 30
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
	if cfg.Watch.PollInterval == 0 {
		cfg.Watch.PollInterval = time.Second
	}
	if cfg.Watch.LockTTL == 0 {
		cfg.Watch.LockTTL = 10 * time.Minute
	}
}

// Validate checks value ranges across sections.
func (c *AppConfig) Validate() error {
	if err := c.Processing.Validate(); err != nil {
		return fmt.Errorf("processing: %w", err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "", "pgx", "postgres":
	default:
		return fmt.Errorf("database: unsupported driver %q", c.Database.Driver)
	}
	if c.Validation.Recalculate && !c.Processing.EnableAutomation {
		return fmt.Errorf("validation: recalculate requires processing.enable_automation")
	}
	if c.Watch.Debounce < 0 || c.Watch.LockTTL < 0 || c.Watch.TempMaxAge < 0 {
		return fmt.Errorf("watch: durations must not be negative")
	}
	return nil
}

// Params returns a copy of the processing params with overrides applied.
func (c *AppConfig) Params(overrides map[string]string) (domain.TransformParams, error) {
	p, err := c.Processing.ApplyOptions(overrides)
	if err != nil {
		return domain.TransformParams{}, err
	}
	if err := p.Validate(); err != nil {
		return domain.TransformParams{}, err
	}
	return p, nil
}
