package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var thresholdsFile string

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Manage the stored watch list",
}

var thresholdsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Validate and store a threshold config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if thresholdsFile == "" {
			return fmt.Errorf("--file is required")
		}
		return getApp().SetThresholds(cmd.Context(), thresholdsFile)
	},
}

var thresholdsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored threshold config",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowThresholds(cmd.Context())
	},
}

func init() {
	thresholdsSetCmd.Flags().StringVar(&thresholdsFile, "file", "", "Path to the threshold config JSON")
	thresholdsCmd.AddCommand(thresholdsSetCmd)
	thresholdsCmd.AddCommand(thresholdsShowCmd)
}
