package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"token-alerts/internal/alerting"
	"token-alerts/internal/balance"
	"token-alerts/internal/chain"
	"token-alerts/internal/evaluator"
	"token-alerts/internal/heartbeat"
	"token-alerts/internal/observability"
	"token-alerts/internal/secrets"
	"token-alerts/internal/storage"
	"token-alerts/internal/watchlist"
)

// Event is an inbound transaction notification.
type Event struct {
	Hash    string `json:"hash"`
	Network string `json:"network"`
	From    string `json:"from"`
}

// Result reports what a single invocation did.
type Result struct {
	Heartbeat  uint64                `json:"heartbeat"`
	Chain      chain.ID              `json:"chain"`
	Skipped    string                `json:"skipped,omitempty"`
	Candidates []evaluator.Candidate `json:"-"`
	Alerts     int                   `json:"alerts"`
	Delivered  int                   `json:"delivered"`
}

// Skip reasons.
const (
	SkipNoHash      = "no transaction hash"
	SkipUnsupported = "unsupported chain"
	SkipNoAPIKey    = "rpc api key not configured"
	SkipNoConfig    = "threshold config not stored"
)

// ReaderSource hands out balance readers bound to a network.
type ReaderSource interface {
	Reader(ctx context.Context, network chain.Network, apiKey string) (evaluator.BalanceReader, error)
}

// PoolSource adapts a balance.Pool to ReaderSource.
type PoolSource struct {
	Pool *balance.Pool
}

// Reader implements ReaderSource.
func (p PoolSource) Reader(ctx context.Context, network chain.Network, apiKey string) (evaluator.BalanceReader, error) {
	return p.Pool.Get(ctx, network, apiKey)
}

// NotifierFactory builds a notifier for the webhook URL read at invocation time.
type NotifierFactory func(webhookURL string) alerting.Notifier

// Recorder receives invocation metrics. *observability.Metrics satisfies it.
type Recorder interface {
	alerting.FailureRecorder
	RecordInvocation(outcome string)
	RecordCandidates(id chain.ID, n int)
	RecordHeartbeat(count uint64)
}

// Service orchestrates heartbeat, evaluation and alert delivery per event.
type Service struct {
	kv         storage.KV
	alertStore storage.AlertStore
	secrets    secrets.Store
	readers    ReaderSource
	notifiers  NotifierFactory
	recorder   Recorder
	tracker    *heartbeat.Tracker
	evaluator  *evaluator.Evaluator
	base       zerolog.Logger
	logger     zerolog.Logger
	now        func() time.Time
}

// New constructs the alert service. alertStore and recorder may be nil.
func New(cadence uint64, kv storage.KV, alertStore storage.AlertStore, secretStore secrets.Store, readers ReaderSource, notifiers NotifierFactory, recorder Recorder, logger zerolog.Logger) *Service {
	if recorder == nil {
		recorder = (*observability.Metrics)(nil)
	}
	return &Service{
		kv:         kv,
		alertStore: alertStore,
		secrets:    secretStore,
		readers:    readers,
		notifiers:  notifiers,
		recorder:   recorder,
		tracker:    heartbeat.NewTracker(kv, cadence, logger),
		evaluator:  evaluator.New(logger),
		base:       logger,
		logger:     logger.With().Str("component", "service").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HandleTransaction runs one invocation for ev. Configuration gaps are logged
// and reported through Result.Skipped; storage, parse and RPC failures are
// returned as errors. Notification failures never fail the invocation.
func (s *Service) HandleTransaction(ctx context.Context, ev Event) (Result, error) {
	res, err := s.handle(ctx, ev)
	switch {
	case err != nil:
		s.recorder.RecordInvocation(observability.OutcomeFailed)
	case res.Skipped == SkipUnsupported:
		s.recorder.RecordInvocation(observability.OutcomeUnsupported)
	case res.Skipped != "":
		s.recorder.RecordInvocation(observability.OutcomeSkipped)
	default:
		s.recorder.RecordInvocation(observability.OutcomeProcessed)
	}
	return res, err
}

func (s *Service) handle(ctx context.Context, ev Event) (Result, error) {
	var res Result

	if strings.TrimSpace(ev.Hash) == "" {
		s.logger.Debug().Msg("event without transaction hash ignored")
		res.Skipped = SkipNoHash
		return res, nil
	}

	logger := s.logger.With().Str("tx", ev.Hash).Str("network", ev.Network).Logger()
	dispatcher := alerting.NewDispatcher(s.notifiers(s.secret(ctx, secrets.SlackWebhook)), s.recorder, s.base)

	count, err := s.tracker.Tick(ctx, dispatcher)
	if err != nil {
		return res, err
	}
	res.Heartbeat = count
	s.recorder.RecordHeartbeat(count)

	network, err := resolveNetwork(ev.Network)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping event")
		res.Skipped = SkipUnsupported
		return res, nil
	}
	res.Chain = network.ID

	apiKey := s.secret(ctx, secrets.AlchemyAPIKey)
	if apiKey == "" {
		logger.Warn().Msg("alchemy api key missing; skipping evaluation")
		res.Skipped = SkipNoAPIKey
		return res, nil
	}

	cfg, found, err := s.loadWatchlist(ctx, network.ID)
	if err != nil {
		return res, err
	}
	if !found {
		logger.Warn().Str("key", watchlist.StorageKey).Msg("no threshold config stored; skipping evaluation")
		res.Skipped = SkipNoConfig
		return res, nil
	}

	if !common.IsHexAddress(ev.From) {
		return res, fmt.Errorf("invalid sender address %q", ev.From)
	}
	tx := evaluator.Transaction{Hash: ev.Hash, From: common.HexToAddress(ev.From)}

	reader, err := s.readers.Reader(ctx, network, apiKey)
	if err != nil {
		return res, fmt.Errorf("balance reader for %s: %w", network.Name, err)
	}

	candidates, err := s.evaluator.Evaluate(ctx, network, tx, cfg, reader)
	if err != nil {
		return res, fmt.Errorf("evaluate %s: %w", network.Name, err)
	}
	res.Candidates = candidates
	res.Alerts = len(candidates)
	s.recorder.RecordCandidates(network.ID, len(candidates))

	for _, c := range candidates {
		delivered := dispatcher.Dispatch(ctx, "balance", alerting.BalanceAlert(c))
		if delivered {
			res.Delivered++
		}
		s.record(ctx, c, delivered)
	}

	logger.Info().Uint64("heartbeat", count).
		Int("alerts", res.Alerts).
		Int("delivered", res.Delivered).
		Msg("event processed")

	return res, nil
}

func resolveNetwork(raw string) (chain.Network, error) {
	id, err := chain.ParseID(raw)
	if err != nil {
		return chain.Network{}, err
	}
	return chain.MustResolve(id)
}

// secret returns the named secret or "" when it is unavailable.
func (s *Service) secret(ctx context.Context, key string) string {
	if s.secrets == nil {
		return ""
	}
	value, err := s.secrets.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, secrets.ErrNotFound) {
			s.logger.Error().Err(err).Str("secret", key).Msg("failed to read secret")
		}
		return ""
	}
	return value
}

func (s *Service) loadRaw(ctx context.Context) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	if err := s.kv.GetJSON(ctx, watchlist.StorageKey, &raw); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load threshold config: %w", err)
	}
	return raw, true, nil
}

// loadWatchlist parses only the entries for id, so a bad entry on another
// chain cannot block this one.
func (s *Service) loadWatchlist(ctx context.Context, id chain.ID) (watchlist.Config, bool, error) {
	raw, found, err := s.loadRaw(ctx)
	if err != nil || !found {
		return watchlist.Config{}, found, err
	}
	cfg, err := watchlist.ParseChain(raw, id)
	if err != nil {
		return watchlist.Config{}, false, fmt.Errorf("parse threshold config for chain %s: %w", id, err)
	}
	return cfg, true, nil
}

func (s *Service) record(ctx context.Context, c evaluator.Candidate, delivered bool) {
	if s.alertStore == nil {
		return
	}
	symbol := c.Symbol
	if c.Native {
		symbol = "native"
	}
	record := storage.AlertRecord{
		ChainID:   uint64(c.Network.ID),
		TxHash:    c.TxHash,
		Label:     c.Label,
		Account:   c.Account.Hex(),
		Token:     c.Token.Hex(),
		Symbol:    symbol,
		Balance:   c.Balance,
		Threshold: c.Threshold,
		Delivered: delivered,
		CreatedAt: s.now(),
	}
	if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("label", c.Label).Msg("failed to persist alert record")
	}
}

// Thresholds returns the whole stored watch list, validated across all chains.
func (s *Service) Thresholds(ctx context.Context) (watchlist.Config, error) {
	raw, found, err := s.loadRaw(ctx)
	if err != nil {
		return watchlist.Config{}, err
	}
	if !found {
		return watchlist.Config{}, storage.ErrNotFound
	}
	cfg, err := watchlist.Parse(raw)
	if err != nil {
		return watchlist.Config{}, fmt.Errorf("parse threshold config: %w", err)
	}
	return cfg, nil
}

// SetThresholds validates data and stores it as the watch list.
func (s *Service) SetThresholds(ctx context.Context, data []byte) (watchlist.Config, error) {
	cfg, err := watchlist.Parse(data)
	if err != nil {
		return watchlist.Config{}, fmt.Errorf("parse threshold config: %w", err)
	}
	canonical, err := watchlist.Marshal(cfg)
	if err != nil {
		return watchlist.Config{}, err
	}
	if err := s.kv.PutJSON(ctx, watchlist.StorageKey, json.RawMessage(canonical)); err != nil {
		return watchlist.Config{}, fmt.Errorf("store threshold config: %w", err)
	}
	return cfg, nil
}

// HeartbeatCount returns the stored counter without incrementing it.
func (s *Service) HeartbeatCount(ctx context.Context) (uint64, error) {
	count, err := s.kv.GetNumber(ctx, heartbeat.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	return count, err
}
