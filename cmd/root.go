package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/config"
	"github.com/abhisek/parla/internal/logging"
	"github.com/abhisek/parla/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "parla",
	Short: "AI language tutor",
	Long: "Parla is a conversational language tutor. Pick a scenario, talk in the language you are learning,\n" +
		"and every mistake the tutor corrects is logged for a feedback report later.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, lessonFlags(cmd))
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default ./parla.yaml or $XDG_CONFIG_HOME/parla/parla.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PARLA_DB env var)")
	addLessonFlags(rootCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mistakesCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config and applies --db.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Driver = store.DriverSQLite
		cfg.Store.DSN = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured store. An empty sqlite DSN resolves to
// the default XDG path.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	dsn := cfg.Store.DSN
	if cfg.Store.Driver == store.DriverSQLite {
		var err error
		if dsn == "" {
			dsn, err = store.DefaultDBPath()
		} else {
			err = store.EnsureDir(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}

	st, err := store.OpenDriver(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// newLogger builds the logger. The terminal UI owns the screen, so it
// logs to the configured file only.
func newLogger(cfg *config.Config, console bool) (*zap.Logger, error) {
	if console {
		return logging.New(cfg.Log, os.Stderr)
	}
	return logging.New(cfg.Log, nil)
}
