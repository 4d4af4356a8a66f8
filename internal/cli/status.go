package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sheetfix/internal/control"
)

var failedLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth, failed jobs and dependency health",
	RunE:  runStatus,
}

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List watch jobs that ended without success",
	RunE:  runFailed,
}

func init() {
	failedCmd.Flags().IntVar(&failedLimit, "limit", 20, "number of failed jobs to show")
	rootCmd.AddCommand(statusCmd, failedCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.Params(nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := control.NewApp(ctx, cfg, params)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}
	defer app.Close()

	report := app.Health().CheckHealth(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "STATUS\t%s\n", report.SystemStatus)
	_, _ = fmt.Fprintf(w, "QUEUE\t%d\n", report.QueueDepth)
	_, _ = fmt.Fprintf(w, "FAILED\t%d\n", report.FailedJobs)
	for name, c := range report.Components {
		_, _ = fmt.Fprintf(w, "%s\t%s %s\n", name, c.Status, c.Error)
	}
	return w.Flush()
}

func runFailed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.Params(nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := control.NewApp(ctx, cfg, params)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}
	defer app.Close()

	jobs, err := app.FailedJobs().ListFailed(ctx, failedLimit)
	if err != nil {
		slog.Error("Failed to list failed jobs", "error", err)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "FAILED AT\tPATH\tKIND\tATTEMPTS\tRUN\tERROR")
	for _, j := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			j.FailedAt.Format(time.RFC3339), j.Job.Path, j.ErrorKind, j.Attempts, j.RunID, j.Error)
	}
	return w.Flush()
}
