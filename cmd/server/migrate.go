package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/adi/internal/db"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations to the SQLite database",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	conn, err := db.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer conn.Close()
	ran, err := db.RunMigrations(cmd.Context(), conn, migrationsDir, logger)
	if err != nil {
		return err
	}
	if len(ran) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
		return nil
	}
	for _, name := range ran {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
	}
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import [snapshot.json]",
	Short: "Load a table export of the hosted backend into SQLite",
	Long: `Reads a JSON object with "surveys", "survey_responses" and
"user_verifications" arrays and writes them to the SQLite database at
storage.sqlite_path. Response sets already present are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	snap, err := db.ReadSnapshot(f)
	if err != nil {
		return err
	}

	store, err := openSQLite(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := db.ImportSnapshot(cmd.Context(), snap, store, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d surveys, %d responses, %d verifications (skipped %d surveys, %d response sets, %d verifications)\n",
		stats.Surveys, stats.Responses, stats.Verifications, stats.SkippedSurveys, stats.SkippedSets, stats.SkippedVerifs)
	return nil
}
