package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-alerts/internal/balance"
	"token-alerts/internal/chain"
	"token-alerts/internal/watchlist"
)

var (
	relayer = common.HexToAddress("0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61")
	signer  = common.HexToAddress("0x23Bc2B107C7C7C04F2bA1d345376145adAdDFA35")
	sender  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	usdc    = common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85")
)

type stubReader struct {
	native  decimal.Decimal
	token   decimal.Decimal
	err     error
	holders []common.Address
}

func (s *stubReader) NativeBalance(_ context.Context, holder common.Address) (balance.Sample, error) {
	s.holders = append(s.holders, holder)
	if s.err != nil {
		return balance.Sample{}, s.err
	}
	return balance.Sample{Holder: holder, Native: true, Balance: s.native}, nil
}

func (s *stubReader) TokenBalance(_ context.Context, token, holder common.Address) (balance.Sample, error) {
	s.holders = append(s.holders, holder)
	if s.err != nil {
		return balance.Sample{}, s.err
	}
	return balance.Sample{Holder: holder, Token: token, Symbol: "USDC", Balance: s.token}, nil
}

func testConfig(t *testing.T, opNative, opUSDC, arbNative string) watchlist.Config {
	t.Helper()
	cfg, err := watchlist.New([]watchlist.Watch{
		{
			Chain:   chain.Optimism,
			Address: relayer,
			Entry: watchlist.Entry{
				Label:    "Relayer",
				Contacts: []watchlist.Contact{{Name: "Irara", SlackID: "U1"}},
				Tokens: []watchlist.MonitorToken{
					{Address: watchlist.NativeToken, Threshold: decimal.RequireFromString(opNative)},
					{Address: usdc, Threshold: decimal.RequireFromString(opUSDC)},
				},
			},
		},
		{
			Chain:   chain.Arbitrum,
			Address: signer,
			Entry: watchlist.Entry{
				Label:  "Signer",
				Tokens: []watchlist.MonitorToken{{Address: watchlist.NativeToken, Threshold: decimal.RequireFromString(arbNative)}},
			},
		},
	})
	require.NoError(t, err)
	return cfg
}

func network(t *testing.T, id chain.ID) chain.Network {
	t.Helper()
	n, ok := chain.Resolve(id)
	require.True(t, ok)
	return n
}

func TestThresholdIsInclusive(t *testing.T) {
	cases := []struct {
		balance string
		alert   bool
	}{
		{"1.5", true},
		{"2", true},
		{"2.000000000000000001", false},
	}
	for _, tc := range cases {
		reader := &stubReader{native: decimal.RequireFromString(tc.balance), token: decimal.NewFromInt(1000)}
		cfg := testConfig(t, "2", "1", "1")

		got, err := New(zerolog.Nop()).Evaluate(context.Background(), network(t, chain.Optimism), Transaction{Hash: "0x1", From: sender}, cfg, reader)
		require.NoError(t, err)
		if tc.alert {
			require.Len(t, got, 1, "balance %s", tc.balance)
			assert.True(t, got[0].Native)
		} else {
			assert.Empty(t, got, "balance %s", tc.balance)
		}
	}
}

func TestOnlyEventChainEvaluated(t *testing.T) {
	reader := &stubReader{native: decimal.RequireFromString("0.001"), token: decimal.NewFromInt(1000)}
	// Arbitrum would alert, but the event is on Optimism.
	cfg := testConfig(t, "0.0025", "5.5", "100")

	got, err := New(zerolog.Nop()).Evaluate(context.Background(), network(t, chain.Optimism), Transaction{Hash: "0xabc", From: sender}, cfg, reader)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, chain.Optimism, got[0].Network.ID)
	assert.Equal(t, "Relayer", got[0].Label)
	assert.Equal(t, "0xabc", got[0].TxHash)
	assert.Len(t, reader.holders, 2)
}

func TestAllAboveThresholdYieldsNothing(t *testing.T) {
	reader := &stubReader{native: decimal.NewFromInt(10), token: decimal.NewFromInt(10)}
	cfg := testConfig(t, "1", "1", "100")

	got, err := New(zerolog.Nop()).Evaluate(context.Background(), network(t, chain.Optimism), Transaction{Hash: "0x1", From: sender}, cfg, reader)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBalancesReadForSenderNotWatchedAddress(t *testing.T) {
	reader := &stubReader{native: decimal.Zero, token: decimal.Zero}
	cfg := testConfig(t, "1", "1", "1")

	got, err := New(zerolog.Nop()).Evaluate(context.Background(), network(t, chain.Optimism), Transaction{Hash: "0x1", From: sender}, cfg, reader)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, h := range reader.holders {
		assert.Equal(t, sender, h)
	}
	for _, c := range got {
		assert.Equal(t, sender, c.Account)
		assert.Equal(t, relayer, c.Watched)
	}
}

func TestTokenCandidateCarriesSymbol(t *testing.T) {
	reader := &stubReader{native: decimal.NewFromInt(10), token: decimal.RequireFromString("5.5")}
	cfg := testConfig(t, "1", "5.5", "1")

	got, err := New(zerolog.Nop()).Evaluate(context.Background(), network(t, chain.Optimism), Transaction{Hash: "0x1", From: sender}, cfg, reader)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Native)
	assert.Equal(t, "USDC", got[0].Symbol)
	assert.Equal(t, usdc, got[0].Token)
	assert.Equal(t, []watchlist.Contact{{Name: "Irara", SlackID: "U1"}}, got[0].Contacts)
}

func TestReadErrorAbortsEvaluation(t *testing.T) {
	reader := &stubReader{err: errors.New("rpc unavailable")}
	cfg := testConfig(t, "1", "1", "1")

	got, err := New(zerolog.Nop()).Evaluate(context.Background(), network(t, chain.Optimism), Transaction{Hash: "0x1", From: sender}, cfg, reader)
	assert.ErrorIs(t, err, reader.err)
	assert.Nil(t, got)
	assert.Len(t, reader.holders, 1)
}

func TestUnconfiguredChainNoReads(t *testing.T) {
	reader := &stubReader{}
	cfg := testConfig(t, "1", "1", "1")

	got, err := New(zerolog.Nop()).Evaluate(context.Background(), network(t, chain.BaseSepolia), Transaction{Hash: "0x1", From: sender}, cfg, reader)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, reader.holders)
}
