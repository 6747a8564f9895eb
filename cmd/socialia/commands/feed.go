package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/socialia/config"
	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/post"
	"github.com/teranos/socialia/sym"
)

// FeedCmd shows recent posts from configured platforms
var FeedCmd = &cobra.Command{
	Use:   "feed [platform]",
	Short: sym.Post + " Show recent posts",
	Long: sym.Post + ` Show the account's recent posts.

Without an argument, every configured platform that supports reading is
queried. Platforms without a read API are skipped.

Examples:
  socialia feed
  socialia feed twitter --limit 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		registry := buildRegistry(cfg)

		platforms := registry.Platforms()
		if len(args) == 1 {
			requested := post.Platform(args[0])
			if !requested.Valid() {
				return errors.NewInvalidRequestError("unsupported platform %q", requested)
			}
			platforms = []post.Platform{requested}
		}

		limit, _ := cmd.Flags().GetInt("limit")
		timeout := time.Duration(cfg.Scheduler.PostTimeoutSeconds) * time.Second

		for _, platformName := range platforms {
			poster, err := registry.Get(platformName)
			if err != nil {
				if len(args) == 1 {
					return errors.Wrapf(err, "platform %s is not configured", platformName)
				}
				continue
			}

			reader, ok := poster.(post.FeedReader)
			if !ok {
				if len(args) == 1 {
					return errors.NewInvalidRequestError("platform %s does not support feed reading", platformName)
				}
				continue
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			items, err := reader.Feed(ctx, limit)
			cancel()

			pterm.DefaultSection.Println(string(platformName))
			if err != nil {
				pterm.Warning.Printf("Feed failed: %v\n", err)
				continue
			}
			if len(items) == 0 {
				pterm.Info.Println("No recent posts")
				continue
			}
			for _, item := range items {
				pterm.Printf("  %s  %s\n", item.CreatedAt, truncate(item.Text, 60))
				if item.URL != "" {
					pterm.Printf("      %s\n", item.URL)
				}
			}
		}
		return nil
	},
}

func init() {
	FeedCmd.Flags().Int("limit", 10, "Maximum posts per platform")
}
