package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/socialweight/socialweight/internal/app"
	"github.com/socialweight/socialweight/pkg/config"
	"github.com/socialweight/socialweight/pkg/scoring"
	"github.com/socialweight/socialweight/pkg/surface"
)

func newTiersCmd(g *globals) *cobra.Command {
	var (
		configPath string
		outputFmt  string
	)

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "List the tier thresholds and features",
		Long: `Reads the tier table from --config, from .socialweight/config.yaml in
the current directory or a parent, or else from the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := surface.ForFormat(outputFmt)
			if err != nil {
				return err
			}
			tiers, err := loadTiers(cmd, g, configPath)
			if err != nil {
				return err
			}
			return renderer.RenderTiers(cmd.OutOrStdout(), tiers)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a config.yaml")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	return cmd
}

func loadTiers(cmd *cobra.Command, g *globals, path string) (scoring.Tiers, error) {
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.FindConfigFile(wd)
		}
	}
	if path != "" {
		c, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		sc, err := c.Scoring()
		if err != nil {
			return nil, err
		}
		return sc.Tiers, nil
	}

	cfg, err := g.appConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Open(cmd.Context(), cfg, g.logger())
	if err != nil {
		return nil, err
	}
	defer a.Close()
	sc, err := a.Config.Config(cmd.Context())
	if err != nil {
		return nil, err
	}
	return sc.Tiers, nil
}
