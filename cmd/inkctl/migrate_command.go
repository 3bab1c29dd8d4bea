// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taibuivan/inkshelf/internal/platform/migration"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var path string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrateCmd.PersistentFlags().StringVar(&path, "path", "", "Migrations directory (defaults to MIGRATION_PATH)")

	// withRunner opens a runner for the configured database and closes it after fn.
	withRunner := func(fn func(*migration.Runner) error) error {
		cfg, err := ctx.loadConfig()
		if err != nil {
			return err
		}
		dir := path
		if dir == "" {
			dir = cfg.MigrationPath
		}

		runner, err := migration.Open(cfg.DatabaseURL, dir, ctx.log())
		if err != nil {
			return err
		}
		defer runner.Close()
		return fn(runner)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(runner *migration.Runner) error {
				return runner.Up()
			})
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(runner *migration.Runner) error {
				return runner.Down(steps)
			})
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(runner *migration.Runner) error {
				status, err := runner.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case status.Empty:
					fmt.Fprintln(out, "no migrations applied")
				case status.Dirty:
					fmt.Fprintf(out, "version %d (dirty)\n", status.Version)
				default:
					fmt.Fprintf(out, "version %d\n", status.Version)
				}
				return nil
			})
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, statusCmd)
	return migrateCmd
}
