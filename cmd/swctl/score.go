package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/socialweight/socialweight/internal/app"
	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/pkg/surface"
)

func newScoreCmd(g *globals) *cobra.Command {
	var (
		userID    string
		fresh     bool
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute a user's Social Weight",
		Long: `Computes the score through the same engine the service uses, with
elevated privilege: unreadable tables fail the command instead of being
skipped. A fresh cached score is served unless --fresh is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
			renderer, err := surface.ForFormat(outputFmt)
			if err != nil {
				return err
			}
			cfg, err := g.appConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := app.Open(ctx, cfg, g.logger())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Engine.Score(ctx, engine.Request{UserID: id.String(), Elevated: true, Fresh: fresh})
			if err != nil {
				return err
			}
			scfg, err := a.Config.Config(ctx)
			if err != nil {
				return err
			}
			return renderer.Render(cmd.OutOrStdout(), report(res, scfg.Tiers))
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (required)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Bypass the score cache")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
