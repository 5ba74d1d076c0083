package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"token-alerts/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "version: %s\ncommit: %s\nbuilt: %s\ngo: %s\n", info.Version, info.Commit, info.BuildDate, info.GoVersion)
	},
}
