package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/sheetfix/internal/control"
	"github.com/vietddude/sheetfix/internal/core/domain"
	"github.com/vietddude/sheetfix/internal/processing/progress"
)

var overrides []string

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Process one or more workbooks",
	Long: fmt.Sprintf(`Process each workbook and write {stem}_processed_{timestamp}.xlsx into the
output directory. Options can be overridden with --set key=value.

Recognized options: %s`, strings.Join(domain.RecognizedOptions(), ", ")),
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringArrayVar(&overrides, "set", nil, "override a processing option (key=value)")
	rootCmd.AddCommand(processCmd)
}

func parseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid --set %q, expected key=value", pair))
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := parseOverrides(overrides)
	if err != nil {
		slog.Error("Invalid options", "error", err)
		return err
	}
	params, err := cfg.Params(opts)
	if err != nil {
		slog.Error("Invalid options", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, cfg, params)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}
	defer app.Close()

	sink := progress.LogSink{Logger: slog.Default()}
	failures := 0
	for _, input := range args {
		events := progress.Go(ctx, progress.DefaultBuffer, func(ctx context.Context, s progress.Sink) {
			app.Process(ctx, input, s)
		})
		final := progress.Drain(events, sink)
		if final.Kind != domain.EventSuccess {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d workbooks failed", failures, len(args))
	}
	return nil
}
