package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/config"
	"github.com/soaringjerry/adi/internal/db"
	"github.com/soaringjerry/adi/internal/logging"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "adi",
	Short: "Africa Data Insights survey server",
	Long: `adi serves the annual survey API: identity verification, one response
set per user, survey and year, and aggregated insights dashboards.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "read migrations from this directory instead of the embedded set")
	takeCmd.Flags().StringVar(&takeUser, "user", "", "user id answering the survey (required)")
	takeCmd.Flags().IntVar(&takeYear, "year", 0, "survey year (defaults to the current year)")
	_ = takeCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, importCmd, takeCmd)
}

// openStore returns the store selected by storage.driver. SQLite databases
// are migrated before use.
func openStore(ctx context.Context) (api.Store, error) {
	if cfg.Storage.Driver != "sqlite" {
		logger.Info("using in-memory store")
		return api.NewMemoryStore(), nil
	}
	return openSQLite(ctx)
}

func openSQLite(ctx context.Context) (*db.SQLiteStore, error) {
	conn, err := db.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	if _, err := db.RunMigrations(ctx, conn, migrationsDir, logger); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := db.NewSQLiteStore(conn, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info("using sqlite store", zap.String("path", cfg.Storage.SQLitePath))
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
