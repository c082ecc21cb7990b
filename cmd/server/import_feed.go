package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"blog/internal/config"
	"blog/internal/feed"
	"blog/internal/models"
)

var feedOwner string

var importFeedCmd = &cobra.Command{
	Use:   "import-feed",
	Short: "Copy posts from the configured JSON feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		owner := feedOwner
		if owner == "" {
			owner = cfg.Feed.Owner
		}
		return importFeed(cmd.Context(), cfg, store, log, owner)
	},
}

func init() {
	importFeedCmd.Flags().StringVar(&feedOwner, "owner", "", "email of the user who will own imported posts")
	rootCmd.AddCommand(importFeedCmd)
}

func importFeed(ctx context.Context, cfg *config.Config, store *models.Store, log logrus.FieldLogger, ownerEmail string) error {
	if ownerEmail == "" {
		return errors.New("feed owner email is not set")
	}
	owner, err := store.GetUserByEmail(ctx, ownerEmail)
	if err != nil {
		return fmt.Errorf("feed owner %s: %w", ownerEmail, err)
	}

	entries, err := feed.NewClient(cfg.Feed.URL, log).Fetch(ctx)
	if err != nil {
		return err
	}
	res, err := feed.Import(ctx, store, owner.ID, entries)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"url":     cfg.Feed.URL,
		"created": res.Created,
		"skipped": res.Skipped,
	}).Info("feed imported")
	return nil
}
