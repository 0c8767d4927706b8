package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nuken/m3u-epg-checker/internal/database"
	"github.com/nuken/m3u-epg-checker/internal/observability"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the schema of the database storage backend",
	Long: `Manage the schema used by the database storage backend.

"serve" applies pending migrations on start, so these commands are only
needed to inspect the schema or roll a release back. The connection comes
from the database.* configuration (M3UEPG_DATABASE_DRIVER, M3UEPG_DATABASE_DSN).`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withDatabase(func(cmd *cobra.Command, db *database.DB) error {
		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		return printStatus(cmd, db)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: withDatabase(func(cmd *cobra.Command, db *database.DB) error {
		if err := db.Schema().Down(cmd.Context()); err != nil {
			return fmt.Errorf("rolling back: %w", err)
		}
		return printStatus(cmd, db)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: withDatabase(func(cmd *cobra.Command, db *database.DB) error {
		return printStatus(cmd, db)
	}),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withDatabase(fn func(*cobra.Command, *database.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		db, err := database.New(cfg.Database, observability.WithComponent(slog.Default(), "database"), nil)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		return fn(cmd, db)
	}
}

func printStatus(cmd *cobra.Command, db *database.DB) error {
	statuses, err := db.Schema().Status(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED\tDESCRIPTION")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied() {
			applied = s.AppliedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Version, applied, s.Description)
	}
	return tw.Flush()
}
