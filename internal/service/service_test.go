package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-alerts/internal/alerting"
	"token-alerts/internal/balance"
	"token-alerts/internal/chain"
	"token-alerts/internal/evaluator"
	"token-alerts/internal/heartbeat"
	"token-alerts/internal/secrets"
	"token-alerts/internal/storage"
	"token-alerts/internal/watchlist"
)

const thresholds = `{
  "10": {
    "0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61": {
      "label": "Relayer",
      "docUrl": "https://docs.example.com/relayer",
      "contacts": [{"name": "Irara", "slackId": "U03HEAQL36X"}],
      "monitorTokens": {
        "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE": {"threshold": "1", "description": "ETH"},
        "0x0b2c639c533813f4aa9d7837caf62653d097ff85": {"threshold": "100", "description": "USDC"}
      }
    }
  }
}`

const sender = "0x00000000000000000000000000000000000000aa"

type fakeReader struct {
	native decimal.Decimal
	token  decimal.Decimal
	err    error
	calls  int
}

func (f *fakeReader) NativeBalance(_ context.Context, holder common.Address) (balance.Sample, error) {
	f.calls++
	if f.err != nil {
		return balance.Sample{}, f.err
	}
	return balance.Sample{Holder: holder, Native: true, Balance: f.native}, nil
}

func (f *fakeReader) TokenBalance(_ context.Context, token, holder common.Address) (balance.Sample, error) {
	f.calls++
	if f.err != nil {
		return balance.Sample{}, f.err
	}
	return balance.Sample{Holder: holder, Token: token, Symbol: "USDC", Balance: f.token}, nil
}

type fakeSource struct {
	reader  *fakeReader
	apiKeys []string
}

func (f *fakeSource) Reader(_ context.Context, _ chain.Network, apiKey string) (evaluator.BalanceReader, error) {
	f.apiKeys = append(f.apiKeys, apiKey)
	return f.reader, nil
}

type capturingNotifier struct {
	mu       sync.Mutex
	url      string
	err      error
	messages []alerting.Message
}

func (c *capturingNotifier) Notify(_ context.Context, msg alerting.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return c.err
}

type fixture struct {
	store    *storage.MemoryStore
	source   *fakeSource
	notifier *capturingNotifier
	svc      *Service
}

func newFixture(t *testing.T, secretMap secrets.Map, reader *fakeReader) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, secretMap, reader, zerolog.Nop())
}

func newFixtureWithLogger(t *testing.T, secretMap secrets.Map, reader *fakeReader, logger zerolog.Logger) *fixture {
	t.Helper()
	f := &fixture{
		store:    storage.NewMemoryStore(),
		source:   &fakeSource{reader: reader},
		notifier: &capturingNotifier{},
	}
	factory := func(url string) alerting.Notifier {
		f.notifier.url = url
		return f.notifier
	}
	f.svc = New(100, f.store, f.store, secretMap, f.source, factory, nil, logger)
	return f
}

func fullSecrets() secrets.Map {
	return secrets.Map{
		secrets.SlackWebhook:  "https://hooks.slack.test/abc",
		secrets.AlchemyAPIKey: "key",
	}
}

func TestHandleTransactionEmitsAlerts(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{native: decimal.RequireFromString("0.5"), token: decimal.RequireFromString("100")}
	f := newFixture(t, fullSecrets(), reader)
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0xabc", Network: "10", From: sender})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.Heartbeat)
	assert.Equal(t, chain.Optimism, res.Chain)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 2, res.Alerts)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, []string{"key"}, f.source.apiKeys)
	assert.Equal(t, "https://hooks.slack.test/abc", f.notifier.url)
	require.Len(t, f.notifier.messages, 2)

	records, err := f.store.ListRecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.True(t, r.Delivered)
		assert.Equal(t, "0xabc", r.TxHash)
		assert.Equal(t, common.HexToAddress(sender).Hex(), r.Account)
	}
}

func TestHandleTransactionWithoutHashIsNoop(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{}
	f := newFixture(t, fullSecrets(), reader)

	res, err := f.svc.HandleTransaction(ctx, Event{Network: "10", From: sender})
	require.NoError(t, err)
	assert.Equal(t, SkipNoHash, res.Skipped)

	_, err = f.store.GetNumber(ctx, heartbeat.StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, reader.calls)
}

func TestHandleTransactionUnsupportedChainStillTicks(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{}
	f := newFixture(t, fullSecrets(), reader)
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "999", From: sender})
	require.NoError(t, err)
	assert.Equal(t, SkipUnsupported, res.Skipped)
	assert.Equal(t, uint64(1), res.Heartbeat)
	assert.Zero(t, reader.calls)
	assert.Empty(t, f.source.apiKeys)
}

func TestHandleTransactionMissingAPIKey(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{}
	f := newFixture(t, secrets.Map{secrets.SlackWebhook: "https://hooks.slack.test/abc"}, reader)
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: sender})
	require.NoError(t, err)
	assert.Equal(t, SkipNoAPIKey, res.Skipped)
	assert.Zero(t, reader.calls)
}

func TestHandleTransactionMissingConfig(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{}
	f := newFixture(t, fullSecrets(), reader)

	res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: sender})
	require.NoError(t, err)
	assert.Equal(t, SkipNoConfig, res.Skipped)
	assert.Equal(t, uint64(1), res.Heartbeat)
	assert.Zero(t, reader.calls)
}

func TestHandleTransactionAboveThresholdIsSilent(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{native: decimal.NewFromInt(2), token: decimal.NewFromInt(101)}
	f := newFixture(t, fullSecrets(), reader)
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: sender})
	require.NoError(t, err)
	assert.Zero(t, res.Alerts)
	assert.Empty(t, f.notifier.messages)
}

func TestHandleTransactionRPCFailure(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{err: errors.New("rpc unavailable")}
	f := newFixture(t, fullSecrets(), reader)
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	_, err = f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: sender})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
	assert.Empty(t, f.notifier.messages)
}

func TestHandleTransactionWebhookFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{native: decimal.Zero, token: decimal.NewFromInt(500)}
	f := newFixture(t, fullSecrets(), reader)
	f.notifier.err = errors.New("slack down")
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: sender})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Alerts)
	assert.Zero(t, res.Delivered)

	records, err := f.store.ListRecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Delivered)
	assert.Equal(t, "native", records[0].Symbol)
}

func TestHandleTransactionIgnoresBadEntriesOnOtherChains(t *testing.T) {
	ctx := context.Background()
	docs := map[string]string{
		"symbol token key": `{
  "8453": {"0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61": {"monitorTokens": {"USDC": {"threshold": "1"}}}},
  "10": {"0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61": {"label": "Relayer", "monitorTokens": {"0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE": {"threshold": "1"}}}}
}`,
		"case variant duplicate": `{
  "8453": {
    "0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61": {"label": "a"},
    "0xff32609a2ee397857841c46d96edb85f0ac64d61": {"label": "b"}
  },
  "10": {"0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61": {"label": "Relayer", "monitorTokens": {"0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE": {"threshold": "1"}}}}
}`,
		"unparsable threshold and chain key": `{
  "base": {"x": 1},
  "8453": {"0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61": {"monitorTokens": {"0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE": {"threshold": "lots"}}}},
  "10": {"0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61": {"label": "Relayer", "monitorTokens": {"0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE": {"threshold": "1"}}}}
}`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			reader := &fakeReader{native: decimal.RequireFromString("0.5")}
			f := newFixture(t, fullSecrets(), reader)
			require.NoError(t, f.store.PutJSON(ctx, watchlist.StorageKey, json.RawMessage(doc)))

			res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: sender})
			require.NoError(t, err)
			assert.Equal(t, 1, res.Alerts)
			assert.Equal(t, 1, reader.calls)
			require.Len(t, f.notifier.messages, 1)

			_, err = f.svc.HandleTransaction(ctx, Event{Hash: "0x2", Network: "8453", From: sender})
			assert.Error(t, err)

			_, err = f.svc.Thresholds(ctx)
			assert.Error(t, err)
		})
	}
}

func TestDispatchLogsCarryOneComponent(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	reader := &fakeReader{native: decimal.Zero, token: decimal.NewFromInt(500)}
	f := newFixtureWithLogger(t, fullSecrets(), reader, zerolog.New(&buf))
	f.notifier.err = errors.New("slack down")
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	_, err = f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: sender})
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, "failed to dispatch alert") {
			continue
		}
		found = true
		assert.Equal(t, 1, strings.Count(line, `"component"`), line)
		assert.Contains(t, line, `"component":"dispatcher"`)
	}
	assert.True(t, found)
}

func TestHandleTransactionInvalidSender(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fullSecrets(), &fakeReader{})
	_, err := f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	_, err = f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "10", From: "nope"})
	assert.Error(t, err)
}

func TestHeartbeatCadenceAcrossInvocations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fullSecrets(), &fakeReader{})
	require.NoError(t, f.store.PutNumber(ctx, heartbeat.StorageKey, 99))

	res, err := f.svc.HandleTransaction(ctx, Event{Hash: "0x1", Network: "999", From: sender})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Heartbeat)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0].Title, "Heartbeat")

	count, err := f.svc.HeartbeatCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), count)
}

func TestThresholdsRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fullSecrets(), &fakeReader{})

	_, err := f.svc.Thresholds(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.svc.SetThresholds(ctx, []byte(`{"10": {"not-an-address": {}}}`))
	assert.Error(t, err)

	_, err = f.svc.SetThresholds(ctx, []byte(thresholds))
	require.NoError(t, err)

	cfg, err := f.svc.Thresholds(ctx)
	require.NoError(t, err)
	watches := cfg.ForChain(chain.Optimism)
	require.Len(t, watches, 1)
	assert.Equal(t, "Relayer", watches[0].Entry.Label)
	assert.Len(t, watches[0].Entry.Tokens, 2)
	assert.Equal(t, []chain.ID{chain.Optimism}, cfg.Chains())
}
