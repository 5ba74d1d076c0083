package cli

import (
	"github.com/spf13/cobra"

	"token-alerts/internal/app"
)

var handleEventPath string

var handleCmd = &cobra.Command{
	Use:   "handle",
	Short: "Process one transaction event and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Handle(cmd.Context(), app.HandleOptions{EventPath: handleEventPath})
	},
}

func init() {
	handleCmd.Flags().StringVar(&handleEventPath, "event", "-", "Path to the event JSON, or - for stdin")
}
