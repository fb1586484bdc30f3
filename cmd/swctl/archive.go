package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialweight/socialweight/internal/archive"
)

func newArchiveCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Read archived tier transitions",
	}

	var userID, id string
	get := &cobra.Command{
		Use:   "get",
		Short: "Print an archived transition (the latest by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.appConfig()
			if err != nil {
				return err
			}
			blobs, err := archive.Open(cmd.Context(), archive.Config{
				Backend:   cfg.Archive.Backend,
				LocalDir:  cfg.Archive.LocalDir,
				Bucket:    cfg.Archive.Bucket,
				Region:    cfg.Archive.Region,
				Endpoint:  cfg.Archive.Endpoint,
				AccessKey: cfg.Archive.AccessKey,
				SecretKey: cfg.Archive.SecretKey,
			})
			if err != nil {
				return err
			}
			if blobs == nil {
				return errors.New("archive is disabled (ARCHIVE_BACKEND=none)")
			}

			e, err := archive.NewTransitions(blobs).Get(cmd.Context(), userID, id)
			if errors.Is(err, archive.ErrNotFound) {
				return fmt.Errorf("no archived transition for user %s", userID)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(e)
		},
	}
	get.Flags().StringVar(&userID, "user", "", "User id (required)")
	get.Flags().StringVar(&id, "id", "", "Transition id (default: latest)")
	_ = get.MarkFlagRequired("user")

	cmd.AddCommand(get)
	return cmd
}
