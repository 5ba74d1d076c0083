package evaluator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"token-alerts/internal/balance"
	"token-alerts/internal/chain"
	"token-alerts/internal/watchlist"
)

// Transaction is the slice of an inbound transaction event the evaluator needs.
type Transaction struct {
	Hash string
	From common.Address
}

// BalanceReader fetches balances on one network.
type BalanceReader interface {
	NativeBalance(ctx context.Context, holder common.Address) (balance.Sample, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (balance.Sample, error)
}

// Candidate is a monitored token whose balance is at or below its threshold.
type Candidate struct {
	Network     chain.Network
	TxHash      string
	Watched     common.Address
	Account     common.Address
	Label       string
	DocURL      string
	Contacts    []watchlist.Contact
	Token       common.Address
	Native      bool
	Symbol      string
	Description string
	Balance     decimal.Decimal
	Threshold   decimal.Decimal
}

// Evaluator compares balances against configured thresholds.
type Evaluator struct {
	logger zerolog.Logger
}

// New constructs an Evaluator.
func New(logger zerolog.Logger) *Evaluator {
	return &Evaluator{logger: logger.With().Str("component", "evaluator").Logger()}
}

// Evaluate checks every token watched on network. Balances are read for the
// transaction's sender; the watched address only labels the alert. The first
// read error aborts the evaluation and no candidates are returned.
func (e *Evaluator) Evaluate(ctx context.Context, network chain.Network, tx Transaction, cfg watchlist.Config, reader BalanceReader) ([]Candidate, error) {
	var candidates []Candidate

	for _, watch := range cfg.ForChain(network.ID) {
		e.logger.Debug().Str("chain", network.ID.String()).
			Str("address", watch.Address.Hex()).
			Str("label", watch.Entry.Label).
			Msg("evaluating watch")

		for _, mt := range watch.Entry.Tokens {
			sample, err := readBalance(ctx, reader, mt.Address, tx.From)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", watch.Entry.Label, mt.Address.Hex(), err)
			}

			e.logger.Info().Str("label", watch.Entry.Label).
				Str("token", mt.Address.Hex()).
				Str("symbol", sample.Symbol).
				Str("balance", sample.Balance.String()).
				Str("threshold", mt.Threshold.String()).
				Msg("balance sampled")

			if Exceeds(sample.Balance, mt.Threshold) {
				continue
			}

			candidates = append(candidates, Candidate{
				Network:     network,
				TxHash:      tx.Hash,
				Watched:     watch.Address,
				Account:     tx.From,
				Label:       watch.Entry.Label,
				DocURL:      watch.Entry.DocURL,
				Contacts:    watch.Entry.Contacts,
				Token:       mt.Address,
				Native:      sample.Native,
				Symbol:      sample.Symbol,
				Description: mt.Description,
				Balance:     sample.Balance,
				Threshold:   mt.Threshold,
			})
		}
	}

	return candidates, nil
}

// Exceeds reports whether balance is strictly above threshold. Equal balances alert.
func Exceeds(balance, threshold decimal.Decimal) bool {
	return balance.GreaterThan(threshold)
}

func readBalance(ctx context.Context, reader BalanceReader, token, holder common.Address) (balance.Sample, error) {
	if watchlist.IsNative(token) {
		return reader.NativeBalance(ctx, holder)
	}
	return reader.TokenBalance(ctx, token, holder)
}
