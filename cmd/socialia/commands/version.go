package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/socialia/version"
)

// VersionCmd shows version information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get().String())
	},
}
