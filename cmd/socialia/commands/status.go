package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/socialia/config"
	"github.com/teranos/socialia/post"
)

// StatusCmd shows which platforms have a configured poster
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which platforms are configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		registry := buildRegistry(cfg)

		rows := pterm.TableData{{"Platform", "Configured"}}
		for _, platform := range post.Platforms {
			state := pterm.Red("no")
			if _, err := registry.Get(platform); err == nil {
				state = pterm.Green("yes")
			}
			rows = append(rows, []string{string(platform), state})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}
