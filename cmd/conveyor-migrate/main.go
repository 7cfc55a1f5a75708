// Conveyor Migrate — применяет схему БД dispatcher'а.
//
// Использование:
//
//	conveyor-migrate up   [--db DSN] [--dir migrations]
//	conveyor-migrate down [--db DSN] [--dir migrations]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}
	logger := telemetry.SetupLogger()

	var dsn, dir string
	rootCmd := &cobra.Command{
		Use:           "conveyor-migrate",
		Short:         "Apply Conveyor database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "db", "", "Database connection string (default: DB_URL)")
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "Directory with migration files")

	run := func(direction repo.MigrateDirection) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			if dsn == "" {
				dsn = repo.DSN()
			}
			return repo.Migrate(dsn, dir, direction, logger)
		}
	}

	rootCmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run(repo.MigrateUp)},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", RunE: run(repo.MigrateDown)},
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}
