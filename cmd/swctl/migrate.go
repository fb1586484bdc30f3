package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialweight/socialweight/internal/platform"
)

func newMigrateCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the engine's schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(g, func(db *sql.DB) error {
				if err := platform.AutoMigrate(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return errors.New("--steps must be positive")
			}
			return withDB(g, func(db *sql.DB) error {
				if err := platform.MigrateDown(db, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(g, func(db *sql.DB) error {
				v, dirty, err := platform.MigrationVersion(db)
				if err != nil {
					return err
				}
				state := "clean"
				if dirty {
					state = "dirty"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (%s)\n", v, state)
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, versionCmd)
	return cmd
}

func withDB(g *globals, fn func(db *sql.DB) error) error {
	if g.databaseURL == "" {
		return errors.New("--database-url or DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", g.databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
