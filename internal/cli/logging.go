package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vietddude/sheetfix/internal/core/config"
)

func logLevel(level string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging installs the default logger. With a log file configured,
// records also go to a rotated file and colors are disabled.
func setupLogging(cfg config.LoggingConfig, debug bool) error {
	opts := &tint.Options{
		Level:      logLevel(cfg.Level, debug),
		TimeFormat: time.RFC3339,
	}

	if cfg.File == "" {
		stylelog.InitDefault(opts)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return err
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	opts.NoColor = true
	slog.SetDefault(slog.New(tint.NewHandler(io.MultiWriter(os.Stderr, rotator), opts)))
	return nil
}
