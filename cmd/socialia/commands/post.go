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

// PostCmd posts content to a platform immediately
var PostCmd = &cobra.Command{
	Use:   "post <platform> <text>",
	Short: sym.Post + " Post to a platform now",
	Long: sym.Post + ` Post content to a social platform immediately.

Examples:
  socialia post twitter "Hello world"
  socialia post reddit "Long form text" --title "A title" --subreddit golang
  socialia post slack "Deploy done" --channel "#releases"
  socialia post youtube "Great explanation!" --video-id dQw4w9WgXcQ`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		platformName := post.Platform(args[0])
		text := args[1]

		if !platformName.Valid() {
			return errors.NewInvalidRequestError("unsupported platform %q", platformName)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		registry := buildRegistry(cfg)
		poster, err := registry.Get(platformName)
		if err != nil {
			return errors.Wrapf(err, "platform %s is not configured", platformName)
		}

		payload := post.Payload{
			Text:      text,
			Title:     mustString(cmd, "title"),
			Subreddit: mustString(cmd, "subreddit"),
			Channel:   mustString(cmd, "channel"),
			ThreadTS:  mustString(cmd, "thread-ts"),
			ReplyTo:   mustString(cmd, "reply-to"),
			VideoID:   mustString(cmd, "video-id"),
		}
		if err := payload.Validate(); err != nil {
			return err
		}

		timeout := time.Duration(cfg.Scheduler.PostTimeoutSeconds) * time.Second
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		result, err := poster.Post(ctx, payload)

		tracker := buildTracker(cfg)
		tracker.TrackSocialPost(cmd.Context(), string(platformName), result.ExternalID, err == nil)

		if err != nil {
			return errors.Wrapf(err, "post to %s failed", platformName)
		}

		pterm.Success.Printf("Posted to %s: %s\n", platformName, result.ExternalID)
		if result.URL != "" {
			pterm.Info.Printf("URL: %s\n", result.URL)
		}
		return nil
	},
}

func init() {
	PostCmd.Flags().String("title", "", "Post title (reddit)")
	PostCmd.Flags().String("subreddit", "", "Target subreddit (reddit)")
	PostCmd.Flags().String("channel", "", "Target channel (slack)")
	PostCmd.Flags().String("thread-ts", "", "Thread timestamp to reply into (slack)")
	PostCmd.Flags().String("reply-to", "", "Post id to reply to (twitter)")
	PostCmd.Flags().String("video-id", "", "Video to comment on (youtube)")
}

func mustString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}
