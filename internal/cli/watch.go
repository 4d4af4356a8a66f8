package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/sheetfix/internal/control"
	"github.com/vietddude/sheetfix/internal/processing/progress"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process workbooks dropped into the inbox directory",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchInbox, "inbox", "", "inbox directory (overrides watch.inbox)")
	rootCmd.AddCommand(watchCmd)
}

var watchInbox string

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if watchInbox != "" {
		cfg.Watch.Inbox = watchInbox
	}

	params, err := cfg.Params(nil)
	if err != nil {
		slog.Error("Invalid options", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app, err := control.NewApp(ctx, cfg, params)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}
	defer app.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down...", "signal", sig)
		cancel()
	}()

	if err := app.Watch(ctx, progress.LogSink{Logger: slog.Default()}); err != nil {
		slog.Error("Watch failed", "error", err)
		return err
	}
	slog.Info("Watcher stopped gracefully")
	return nil
}
