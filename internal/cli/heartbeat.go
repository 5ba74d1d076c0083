package cli

import "github.com/spf13/cobra"

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Print the invocation counter",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Heartbeat(cmd.Context())
	},
}
