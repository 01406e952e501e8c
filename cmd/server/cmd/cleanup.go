package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/eventviewer/server/internal/config"
	"github.com/eventviewer/server/internal/jobs"
	"github.com/eventviewer/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newCleanupCmd(flags *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired OTPs, refresh tokens, blacklist rows and reset tokens",
		Long: `Runs the nightly auth sweep once.

Examples:
  # See what would be deleted
  server cleanup --dry-run

  # Delete now
  server cleanup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			pool, err := postgres.Connect(ctx, cfg.Database.URL, 2)
			if err != nil {
				return err
			}
			defer pool.Close()
			repo, err := postgres.NewRepository(pool)
			if err != nil {
				return err
			}

			counts := jobs.RunCleanup(ctx, repo.Cleanup(), time.Now(), dryRun, logger)
			printCleanupReport(cmd.OutOrStdout(), counts, dryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count matching rows without deleting")
	return cmd
}

func printCleanupReport(w io.Writer, counts map[string]int64, dryRun bool) {
	verb := "deleted"
	if dryRun {
		verb = "would delete"
	}
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var total int64
	for _, table := range tables {
		fmt.Fprintf(w, "%-20s %s %d\n", table, verb, counts[table])
		total += counts[table]
	}
	fmt.Fprintf(w, "total: %s %d rows\n", verb, total)
}
