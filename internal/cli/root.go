package cli

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/sheetfix/internal/core/config"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "sheetfix",
	Short: "Resilient xlsx transformation pipeline",
	Long: `Sheetfix rewrites a reconciliation sheet in place of a workbook, falling back
through several strategies and repairers until the result validates. The
original input is never modified.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file and sets up logging. A missing
// default config file falls back to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			stylelog.InitDefault()
			slog.Error("Failed to load config", "error", err)
			return nil, err
		}
		cfg = config.Default()
	}

	if err := setupLogging(cfg.Logging, isDebug); err != nil {
		return nil, err
	}
	return cfg, nil
}
