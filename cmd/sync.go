package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"db-mirror/internal/dialect"
	"db-mirror/internal/engine"
	"db-mirror/internal/errs"
	"db-mirror/internal/report"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the source table into the target table",
	Long: `Reads the source table and the target mirror, classifies every primary key as
inserted, updated, deleted or unchanged, and writes only the differences. Rows removed from
the source are soft-deleted on the target (operation_type = 'deleted').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		return runSync(cmd.Context(), cfg, logger, os.Stdout, !cfg.DryRun)
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("dry-run", false, "Compute and report the diff without writing to the target")
	syncCmd.Flags().Int("batch-size", 0, "Rows per transaction (overrides config)")
	syncCmd.Flags().StringP("table", "t", "", "Source table to mirror (overrides TABLE_NAME)")
	syncCmd.Flags().String("target-table", "", "Target table name (defaults to the source table)")
	syncCmd.Flags().String("report-format", "", "Summary format: text, markdown or json")
	syncCmd.Flags().Bool("strict", false, "Exit non-zero when any row failed or was skipped")

	viper.BindPFlag("dry_run", syncCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("batch_size", syncCmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("table", syncCmd.Flags().Lookup("table"))
	viper.BindPFlag("target.table", syncCmd.Flags().Lookup("target-table"))
	viper.BindPFlag("report.format", syncCmd.Flags().Lookup("report-format"))
	viper.BindPFlag("strict", syncCmd.Flags().Lookup("strict"))
}

// runSync performs one mirror run and renders its summary to out. The summary is written
// even when the run fails.
func runSync(ctx context.Context, cfg *MirrorConfig, log *slog.Logger, out io.Writer, progress bool) error {
	start := time.Now()
	summary := report.New(cfg.Table, cfg.Target.Table, cfg.Driver, start)
	summary.DryRun = cfg.DryRun

	if cfg.DryRun {
		log.Info("[SIMULATION] Dry-Run Mode Active: No data will be written.")
	}
	log.Info("Starting mirror", "driver", cfg.Driver, "table", cfg.Table,
		"target_table", cfg.Target.Table, "batch_size", cfg.BatchSize, "timezone", cfg.Timezone)

	err := mirror(ctx, cfg, log, summary, progress)
	summary.Finish(err, time.Now())
	if err != nil {
		log.Error("Mirror failed", "error", err)
	}

	if rerr := report.Render(out, summary, cfg.Report.Format); rerr != nil {
		log.Error("Failed to render summary", "error", rerr)
	}
	if serr := report.AppendStepSummary(cfg.Report.SummaryFile, summary); serr != nil {
		log.Warn("Failed to write CI step summary", "error", serr)
	}
	log.Info("Mirror done", "outcome", summary.Outcome, "elapsed", summary.Duration)

	if err != nil {
		return err
	}
	if cfg.Strict && summary.Outcome == report.OutcomePartial {
		return fmt.Errorf("strict mode: %d rows failed and %d rows were skipped", summary.Failed, summary.Skipped)
	}
	return nil
}

func mirror(ctx context.Context, cfg *MirrorConfig, log *slog.Logger, summary *report.Summary, progress bool) error {
	d := dialect.GetDialect(cfg.Driver)
	log.Info("Using dialect", "dialect", d.Name())

	src, err := connect(ctx, d, cfg.Conn(cfg.Source), errs.Source)
	if err != nil {
		summary.SourceStatus = report.Failed
		return err
	}
	defer src.Close()
	summary.SourceStatus = report.Connected
	log.Info("Connected to source", "host", cfg.Source.Host, "database", cfg.Source.Name)

	tgt, err := connect(ctx, d, cfg.Conn(cfg.Target), errs.Target)
	if err != nil {
		summary.TargetStatus = report.Failed
		return err
	}
	defer tgt.Close()
	summary.TargetStatus = report.Connected
	log.Info("Connected to target", "host", cfg.Target.Host, "database", cfg.Target.Name)

	loc := cfg.Location()
	run := &engine.Run{
		Source:       src,
		Target:       tgt,
		Dialect:      d,
		SourceSchema: cfg.SchemaFor(cfg.Source),
		TargetSchema: cfg.SchemaFor(cfg.Target),
		Table:        cfg.Table,
		TargetTable:  cfg.Target.Table,
		Location:     loc,
		BatchSize:    cfg.BatchSize,
		DryRun:       cfg.DryRun,
		Now:          func() time.Time { return time.Now().In(loc) },
		Logger:       log,
		Summary:      summary,
	}

	if progress {
		var bar *uiprogress.Bar
		run.OnPlan = func(total int) {
			if total == 0 {
				return
			}
			uiprogress.Start()
			bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return "Applying: "
			})
		}
		run.OnProgress = func(n int) {
			bar.Set(bar.Current() + n)
		}
		defer func() {
			if bar != nil {
				uiprogress.Stop()
			}
		}()
	}

	return run.Execute(ctx)
}

// connect opens and pings one side. Any failure is a ConnectionError.
func connect(ctx context.Context, d dialect.Dialect, conn dialect.ConnConfig, side errs.Side) (*sql.DB, error) {
	dsn, err := d.DSN(conn)
	if err != nil {
		return nil, &errs.ConnectionError{Side: side, Err: err}
	}
	db, err := sql.Open(d.Name(), dsn)
	if err != nil {
		return nil, &errs.ConnectionError{Side: side, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &errs.ConnectionError{Side: side, Err: err}
	}
	return db, nil
}
