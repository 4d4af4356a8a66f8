package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sheetfix/internal/core/config"
	"github.com/vietddude/sheetfix/internal/infra/storage/postgres"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent processing runs from the database",
	RunE:  runHistory,
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List recent input backups from the database",
	RunE:  runBackups,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	backupsCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of backups to show")
	rootCmd.AddCommand(historyCmd, backupsCmd)
}

// openDB connects to the configured database. The run ledger only outlives
// a process when it is stored in PostgreSQL.
func openDB(ctx context.Context, cfg *config.AppConfig) (*postgres.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is not configured")
	}
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return nil, err
	}
	return db, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	runs, err := postgres.NewRunRepo(db).ListRuns(ctx, historyLimit)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RUN\tINPUT\tSTATUS\tATTEMPTS\tERROR\tSTARTED\tOUTPUT")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.InputPath, r.Status, len(r.Attempts), r.ErrorKind,
			r.StartedAt.Format(time.RFC3339), r.OutputPath)
	}
	return w.Flush()
}

func runBackups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	backups, err := postgres.NewRunRepo(db).ListBackups(ctx, historyLimit)
	if err != nil {
		slog.Error("Failed to list backups", "error", err)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CREATED\tORIGINAL\tBACKUP")
	for _, b := range backups {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", b.CreatedAt.Format(time.RFC3339), b.OriginalPath, b.BackupPath)
	}
	return w.Flush()
}
