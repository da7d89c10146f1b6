package cmd

import (
	"fmt"

	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/Togather-Foundation/attendance/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

var migrateDownSteps int

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
		Long: `Apply, roll back or inspect the embedded SQLite migrations.

The server applies pending migrations on start, so "migrate up" is only
needed to prepare a database ahead of time. Migrations do not apply to the
memory driver.`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			if err := sqlite.MigrateUp(path); err != nil {
				return err
			}
			return printVersion(cmd, path)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			if err := sqlite.MigrateDown(path, migrateDownSteps); err != nil {
				return err
			}
			return printVersion(cmd, path)
		},
	}
	down.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			return printVersion(cmd, path)
		},
	}

	migrateCmd.AddCommand(up, down, version)
	return migrateCmd
}

func sqlitePath() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("config error: %w", err)
	}
	return sqlitePathFrom(cfg.Database)
}

func sqlitePathFrom(cfg config.DatabaseConfig) (string, error) {
	if cfg.Driver != "sqlite" {
		return "", fmt.Errorf("migrations require DATABASE_DRIVER=sqlite, got %q", cfg.Driver)
	}
	return cfg.Path, nil
}

func printVersion(cmd *cobra.Command, path string) error {
	version, dirty, err := sqlite.MigrationVersion(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}
