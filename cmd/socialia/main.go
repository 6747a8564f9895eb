package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/socialia/cmd/socialia/commands"
	"github.com/teranos/socialia/config"
	"github.com/teranos/socialia/logger"
)

var rootCmd = &cobra.Command{
	Use:   "socialia",
	Short: "Socialia - social post scheduler and dispatcher",
	Long: `Socialia - schedule, post, and track social media content.

Socialia posts to twitter, linkedin, reddit, youtube, slack, and
bluesky, immediately or on a schedule, with exactly-once execution.

Available commands:
  post     - Post to a platform now
  thread   - Post a twitter thread
  feed     - Show recent posts from configured platforms
  delete   - Delete a post from a platform
  status   - Show which platforms are configured
  schedule - Manage scheduled posts (add, ls, cancel, move, run, daemon)
  mcp      - Serve Socialia tools over the Model Context Protocol
  version  - Show version information

Examples:
  socialia post twitter "Hello world"
  socialia schedule add twitter "Launch day!" --at "+2h"
  socialia schedule ls
  socialia schedule daemon`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// MCP owns stdout for the protocol; logs stay quiet there
		if cmd.Name() == "mcp" {
			return nil
		}
		if err := logger.Initialize(cfg.Log.JSON); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.PostCmd)
	rootCmd.AddCommand(commands.ThreadCmd)
	rootCmd.AddCommand(commands.FeedCmd)
	rootCmd.AddCommand(commands.DeleteCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.MCPCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
