package heartbeat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"token-alerts/internal/alerting"
	"token-alerts/internal/storage"
)

// StorageKey is the durable counter key.
const StorageKey = "HEART_BEAT_COUNTER"

// DefaultCadence is the number of invocations between liveness notifications.
const DefaultCadence uint64 = 100

// Counter is the atomic increment the tracker needs from storage.
type Counter interface {
	Incr(ctx context.Context, key string) (uint64, error)
}

// Sender delivers liveness messages; delivery is best effort.
type Sender interface {
	Dispatch(ctx context.Context, kind string, msg alerting.Message) bool
}

// Tracker counts invocations and emits a heartbeat every cadence ticks.
type Tracker struct {
	counter Counter
	cadence uint64
	logger  zerolog.Logger
}

// NewTracker constructs a Tracker. A zero cadence falls back to DefaultCadence.
func NewTracker(counter Counter, cadence uint64, logger zerolog.Logger) *Tracker {
	if cadence == 0 {
		cadence = DefaultCadence
	}
	return &Tracker{
		counter: counter,
		cadence: cadence,
		logger:  logger.With().Str("component", "heartbeat").Logger(),
	}
}

// Tick increments the counter once and, on every cadence-th value, sends one
// heartbeat through sender. A nil sender only counts.
func (t *Tracker) Tick(ctx context.Context, sender Sender) (uint64, error) {
	count, err := t.counter.Incr(ctx, StorageKey)
	if err != nil {
		return 0, fmt.Errorf("tick heartbeat: %w", err)
	}
	t.logger.Info().Uint64("count", count).Msg("heartbeat ticked")

	if !t.Due(count) {
		return count, nil
	}

	if sender != nil {
		sender.Dispatch(ctx, "heartbeat", alerting.HeartbeatAlert(count))
	}
	return count, nil
}

// Due reports whether count triggers a heartbeat notification.
func (t *Tracker) Due(count uint64) bool {
	return count != 0 && count%t.cadence == 0
}

var _ Counter = (storage.KV)(nil)
