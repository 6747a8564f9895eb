package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/socialia/config"
	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/platform"
	"github.com/teranos/socialia/post"
	"github.com/teranos/socialia/sym"
)

// ThreadCmd posts a twitter thread
var ThreadCmd = &cobra.Command{
	Use:   "thread <text> [text...]",
	Short: sym.Post + " Post a twitter thread",
	Long: sym.Post + ` Post a sequence of tweets as a reply chain.

Each argument becomes one tweet, replying to the previous one. If a
tweet fails, the chain stops there and the ids posted so far are shown.

Example:
  socialia thread "Big news today 1/3" "The details 2/3" "Thanks all 3/3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		registry := buildRegistry(cfg)
		poster, err := registry.Get(post.PlatformTwitter)
		if err != nil {
			return errors.Wrap(err, "twitter is not configured")
		}
		twitter, ok := poster.(*platform.Twitter)
		if !ok {
			return errors.New("twitter poster does not support threads")
		}

		timeout := time.Duration(cfg.Scheduler.PostTimeoutSeconds) * time.Second * time.Duration(len(args))
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		results, err := twitter.PostThread(ctx, args)

		tracker := buildTracker(cfg)
		for _, r := range results {
			tracker.TrackSocialPost(cmd.Context(), string(post.PlatformTwitter), r.ExternalID, true)
		}

		for i, r := range results {
			pterm.Success.Printf("Tweet %d/%d: %s\n", i+1, len(args), r.URL)
		}
		if err != nil {
			return errors.Wrapf(err, "thread stopped after %d of %d tweets", len(results), len(args))
		}
		return nil
	},
}
