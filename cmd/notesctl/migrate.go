package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"notes-ledger/internal/config"
	"notes-ledger/internal/database"
)

var (
	migrateDryRun bool
	migratePath   string
)

// migrateCmd applies pending database migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  `Apply every migration under the migrations directory that has not been applied yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.Driver != config.StorageDriverPostgres {
			return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
		}

		path := migratePath
		if path == "" {
			path = cfg.Storage.MigrationsPath
		}

		db, err := database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator := database.NewMigrationExecutor(db.DB)
		out := cmd.OutOrStdout()

		if migrateDryRun {
			pending, err := migrator.Pending(os.DirFS(path))
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending migrations.")
				return nil
			}
			for _, m := range pending {
				fmt.Fprintf(out, "pending  %s_%s\n", m.Version, m.Name)
			}
			return nil
		}

		applied, err := migrator.Apply(os.DirFS(path))
		if err != nil {
			return err
		}
		for _, version := range applied {
			fmt.Fprintf(out, "applied  %s\n", version)
		}
		fmt.Fprintf(out, "%d migration(s) applied.\n", len(applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "List pending migrations without applying them")
	migrateCmd.Flags().StringVar(&migratePath, "path", "", "Migrations directory (default MIGRATIONS_PATH)")
}
