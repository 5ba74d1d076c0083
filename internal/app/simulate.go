package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"token-alerts/internal/alerting"
	"token-alerts/internal/chain"
	"token-alerts/internal/evaluator"
	"token-alerts/internal/secrets"
	"token-alerts/internal/watchlist"
)

// SimulateAlert formats a synthetic balance alert and sends it to the
// configured webhook. Unlike live alerts a delivery failure is returned.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	network, err := chain.MustResolve(opts.Chain)
	if err != nil {
		return err
	}

	bal, err := decimal.NewFromString(opts.Balance)
	if err != nil {
		return fmt.Errorf("invalid balance: %w", err)
	}
	threshold, err := decimal.NewFromString(opts.Threshold)
	if err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if evaluator.Exceeds(bal, threshold) {
		a.Logger.Warn().Msg("simulated balance is above threshold; a live event would not alert")
	}

	webhook, err := a.secretStore().Get(ctx, secrets.SlackWebhook)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return alerting.ErrMissingWebhook
		}
		return err
	}

	label := opts.Label
	if label == "" {
		label = "Simulated Wallet"
	}

	candidate := evaluator.Candidate{
		Network:     network,
		TxHash:      "0x" + common.Bytes2Hex(make([]byte, 32)),
		Watched:     common.Address{},
		Account:     common.Address{},
		Label:       label,
		Contacts:    []watchlist.Contact{{Name: "On-call"}},
		Token:       watchlist.NativeToken,
		Native:      opts.Symbol == "",
		Symbol:      opts.Symbol,
		Description: "Simulated alert",
		Balance:     bal,
		Threshold:   threshold,
	}

	msg := alerting.BalanceAlert(candidate)
	if err := a.newNotifier(webhook).Notify(ctx, msg); err != nil {
		return fmt.Errorf("send simulated alert: %w", err)
	}

	a.Logger.Info().Str("chain", network.Name).Str("title", msg.Title).Msg("simulated alert sent")
	return nil
}
