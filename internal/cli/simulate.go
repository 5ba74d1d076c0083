package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"token-alerts/internal/app"
	"token-alerts/internal/chain"
)

var (
	simulateChain     string
	simulateLabel     string
	simulateSymbol    string
	simulateBalance   string
	simulateThreshold string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic low-balance alert to the configured webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := chain.ParseID(simulateChain)
		if err != nil {
			return fmt.Errorf("invalid --chain value: %w", err)
		}

		opts := app.SimulateOptions{
			Chain:     id,
			Label:     simulateLabel,
			Symbol:    simulateSymbol,
			Balance:   simulateBalance,
			Threshold: simulateThreshold,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateChain, "chain", "1", "Chain id of the simulated network")
	simulateCmd.Flags().StringVar(&simulateLabel, "label", "", "Wallet label shown in the alert")
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "", "Token symbol; empty for the native token")
	simulateCmd.Flags().StringVar(&simulateBalance, "balance", "0.001", "Simulated balance in human units")
	simulateCmd.Flags().StringVar(&simulateThreshold, "threshold", "0.0025", "Simulated threshold in human units")
}
