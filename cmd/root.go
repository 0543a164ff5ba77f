package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string
	logger  *slog.Logger
	logFile *os.File
)

var RootCmd = &cobra.Command{
	Use:   "db-mirror",
	Short: "One-way, idempotent table mirror between two databases",
	Long: `
  ____  ____    __  __ ___ ____  ____   ___  ____
 |  _ \| __ )  |  \/  |_ _|  _ \|  _ \ / _ \|  _ \
 | | | |  _ \  | |\/| || || |_) | |_) | | | | |_) |
 | |_| | |_) | | |  | || ||  _ <|  _ <| |_| |  _ <
 |____/|____/  |_|  |_|___|_| \_\_| \_\\___/|_| \_\

DB MIRROR 🪞 - Source-to-target table reconciliation with soft deletes
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, f, err := newLogger(
			viper.GetString("log.file"),
			viper.GetString("log.format"),
			viper.GetString("log.level"),
		)
		if err != nil {
			return err
		}
		logger, logFile = l, f
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-mirror.yaml)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with connection settings")
	RootCmd.PersistentFlags().String("driver", "", "database driver: mysql, postgres, sqlserver, oracle or sqlite")
	RootCmd.PersistentFlags().String("log-file", "", "log file path")
	RootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	RootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	viper.BindPFlag("driver", RootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("log.file", RootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))

	setDefaults(viper.GetViper())
}

// initConfig reads in the config file, the dotenv file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
		// 2. Current Directory (Priority 2)
		v.AddConfigPath(".")

		v.SetConfigName("db-mirror")
		v.SetConfigType("yaml")
	}

	bindEnv(v)
	if err := loadDotEnv(v, envFile); err != nil {
		fmt.Fprintln(os.Stderr, "Ignoring env file:", err)
	}

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}
}

// newLogger builds the run logger, writing to stdout and, when path is set, to a log file.
func newLogger(path, format, level string) (*slog.Logger, *os.File, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var w io.Writer = os.Stdout
	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	default:
		if f != nil {
			f.Close()
		}
		return nil, nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
	return slog.New(h), f, nil
}
