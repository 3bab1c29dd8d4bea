// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/inkshelf/internal/blob"
	"github.com/taibuivan/inkshelf/internal/core/chapter"
	pgstore "github.com/taibuivan/inkshelf/internal/platform/postgres"
	"github.com/taibuivan/inkshelf/internal/sweep"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var (
		grace     time.Duration
		batchSize int
		dryRun    bool
		lockPath  string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete page images no page row references",
		Long: "Walks the blob store and deletes files that no page row owns and that are\n" +
			"older than the grace period. Only one sweep runs at a time.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()

			if !cmd.Flags().Changed("grace") {
				grace = cfg.SweepGrace
			}
			if lockPath == "" {
				lockPath = cfg.SweepLockPath
			}
			if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
				return fmt.Errorf("sweep: create lock directory: %w", err)
			}

			pool, err := pgstore.NewPool(cmd.Context(), cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			blobs, err := blob.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			sweeper := sweep.New(blobs, chapter.NewRepository(pool), lockPath, logger)
			report, err := sweeper.Run(cmd.Context(), sweep.Options{
				Grace:     grace,
				BatchSize: batchSize,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, path := range report.Orphans {
					fmt.Fprintln(out, path)
				}
			}
			fmt.Fprintf(out, "scanned=%d orphaned=%d deleted=%d skipped=%d failed=%d\n",
				report.Scanned, report.Orphaned, report.Deleted, report.Skipped, report.Failed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", sweep.DefaultGrace, "Minimum age of a file before it may be deleted (defaults to SWEEP_GRACE)")
	cmd.Flags().IntVar(&batchSize, "batch-size", sweep.DefaultBatchSize, "Paths checked against the database per query")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphaned files without deleting them")
	cmd.Flags().StringVar(&lockPath, "lock", "", "Lock file path (defaults to SWEEP_LOCK_PATH)")

	return cmd
}
