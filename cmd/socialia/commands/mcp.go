package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/socialia/config"
	mcpserver "github.com/teranos/socialia/mcp"
	"github.com/teranos/socialia/version"
)

// MCPCmd serves Socialia tools over the Model Context Protocol
var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve Socialia tools over MCP (stdio)",
	Long: `Serve Socialia over the Model Context Protocol on stdio.

Exposes posting and scheduling as MCP tools so agent tooling can drive
Socialia: social_post, social_delete, social_status, schedule_post,
schedule_list, schedule_cancel, schedule_run_due.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		registry := buildRegistry(cfg)
		dispatcher := buildDispatcher(database, cfg, registry)

		server := mcpserver.NewMCPServer(dispatcher, registry, version.Get().Version)
		return server.Serve()
	},
}
