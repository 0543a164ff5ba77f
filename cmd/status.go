package cmd

import (
	"os"

	"db-mirror/internal/dialect"
	"db-mirror/internal/engine"
	"db-mirror/internal/errs"
	"db-mirror/internal/report"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show target row counts by operation type",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		d := dialect.GetDialect(cfg.Driver)
		db, err := connect(cmd.Context(), d, cfg.Conn(cfg.Target), errs.Target)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("Connected to target", "host", cfg.Target.Host, "database", cfg.Target.Name)

		table := cfg.QualifiedTarget()
		buckets, last, err := engine.TargetStatus(cmd.Context(), db, d, table, cfg.Location())
		if err != nil {
			return err
		}
		return report.StatusTable(os.Stdout, table, buckets, last)
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
