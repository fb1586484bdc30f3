// Package main provides the swctl CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/socialweight/socialweight/internal/platform"
)

var version = "dev"

// globals are the persistent flags shared by every command.
type globals struct {
	databaseURL string
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "swctl",
		Short: "Inspect and operate the Social Weight engine",
		Long: `swctl computes Social Weight scores against the database, lists the
tier table, manages schema migrations and reads archived tier transitions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log engine activity to stderr")

	rootCmd.AddCommand(
		newScoreCmd(g),
		newTiersCmd(g),
		newMigrateCmd(g),
		newArchiveCmd(g),
	)
	return rootCmd
}

// appConfig reads the service environment and applies the CLI overrides.
// The CLI never migrates implicitly.
func (g *globals) appConfig() (platform.AppConfig, error) {
	cfg, err := platform.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if g.databaseURL != "" {
		cfg.DatabaseURL = g.databaseURL
	}
	cfg.AutoMigrate = false
	return cfg, nil
}

func (g *globals) logger() zerolog.Logger {
	if !g.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
