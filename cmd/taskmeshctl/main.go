// taskmeshctl is the operations CLI: cleanup of expired tombstones and
// stale sync logs, and the 24-hour sync metrics rollup.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh-api/internal/config"
	"github.com/taskmesh/taskmesh-api/internal/db"
	"github.com/taskmesh/taskmesh-api/internal/jobs"
)

var cfgPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Str("service", "taskmeshctl").Logger()

	root := &cobra.Command{
		Use:          "taskmeshctl",
		Short:        "Operations CLI for the taskmesh sync API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to taskmesh.yaml")

	root.AddCommand(cleanupCmd(), metricsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runner loads config and opens the pool for one command invocation.
func runner(ctx context.Context) (*jobs.Runner, *pgxpool.Pool, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return &jobs.Runner{
		DB:               pool,
		SyncLogRetention: time.Duration(cfg.SyncLogRetentionDays) * 24 * time.Hour,
	}, pool, nil
}

func cleanupCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired tombstones and sync logs past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, pool, err := runner(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if dryRun {
				tombstones, syncLogs, err := r.PendingCleanup(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("would delete %d expired tombstones\n", tombstones)
				fmt.Printf("would delete %d sync logs past retention\n", syncLogs)
				return nil
			}

			tombstones, err := r.CleanupExpiredTombstones(ctx)
			if err != nil {
				return err
			}
			syncLogs, err := r.CleanupOldSyncLogs(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d expired tombstones\n", tombstones)
			fmt.Printf("deleted %d sync logs past retention\n", syncLogs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print counts without deleting")
	return cmd
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print sync aggregates for the last 24 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, pool, err := runner(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := r.GenerateSyncMetrics(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("window start:        %s\n", m.WindowStart.Format(time.RFC3339))
			fmt.Printf("total syncs:         %d\n", m.TotalSyncs)
			fmt.Printf("successful:          %d\n", m.Successful)
			fmt.Printf("failed:              %d\n", m.Failed)
			fmt.Printf("avg duration (ms):   %.1f\n", m.AvgDurationMs)
			fmt.Printf("conflicts detected:  %d\n", m.ConflictsDetected)
			fmt.Printf("conflicts resolved:  %d\n", m.ConflictsResolved)
			fmt.Printf("pushes:              %d\n", m.Pushes)
			fmt.Printf("pulls:               %d\n", m.Pulls)
			return nil
		},
	}
}
