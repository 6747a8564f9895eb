package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/socialia/config"
	"github.com/teranos/socialia/errors"
	"github.com/teranos/socialia/post"
)

// DeleteCmd deletes a post from a platform
var DeleteCmd = &cobra.Command{
	Use:   "delete <platform> <post_id>",
	Short: "Delete a post from a platform",
	Long: `Delete a post from a social platform by its platform-assigned id.

Examples:
  socialia delete twitter 1234567890
  socialia delete slack C123:1700000000.000100`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		platformName := post.Platform(args[0])
		postID := args[1]

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		registry := buildRegistry(cfg)
		poster, err := registry.Get(platformName)
		if err != nil {
			return errors.Wrapf(err, "platform %s is not configured", platformName)
		}

		timeout := time.Duration(cfg.Scheduler.PostTimeoutSeconds) * time.Second
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if err := poster.Delete(ctx, postID); err != nil {
			return errors.Wrapf(err, "delete from %s failed", platformName)
		}

		pterm.Success.Printf("Deleted %s from %s\n", postID, platformName)
		return nil
	},
}
