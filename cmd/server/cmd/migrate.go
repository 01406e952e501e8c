package cmd

import (
	"fmt"

	"github.com/eventviewer/server/internal/jobs"
	"github.com/eventviewer/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&path, "path", postgres.DefaultMigrationsPath, "migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateUp(cfg.Database.URL, path); err != nil {
				return err
			}
			if err := migrateRiver(cmd, cfg.Database.URL); err != nil {
				return err
			}
			return reportVersion(cmd, cfg.Database.URL, path)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be at least 1")
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateDown(cfg.Database.URL, path, steps); err != nil {
				return err
			}
			return reportVersion(cmd, cfg.Database.URL, path)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

// migrateRiver brings River's queue tables up with the application schema.
func migrateRiver(cmd *cobra.Command, databaseURL string) error {
	pool, err := postgres.Connect(cmd.Context(), databaseURL, 2)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := jobs.MigrateSchema(cmd.Context(), pool)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "river schema versions applied: %v\n", applied)
	}
	return nil
}

func reportVersion(cmd *cobra.Command, databaseURL, path string) error {
	version, dirty, err := postgres.MigrationVersion(databaseURL, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
