package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// FailureRecorder counts failed deliveries.
type FailureRecorder interface {
	NotificationFailed(kind string)
	NotificationSent(kind string)
}

// Dispatcher wraps a Notifier with best-effort semantics: failures are logged
// and reported back as false, never as an error.
type Dispatcher struct {
	notifier Notifier
	recorder FailureRecorder
	logger   zerolog.Logger
}

// NewDispatcher constructs a Dispatcher. recorder may be nil.
func NewDispatcher(notifier Notifier, recorder FailureRecorder, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch attempts a single delivery and reports whether it succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, kind string, msg Message) bool {
	if d == nil || d.notifier == nil {
		return false
	}

	if err := d.notifier.Notify(ctx, msg); err != nil {
		d.logger.Error().Err(err).Str("kind", kind).Str("title", msg.Title).Msg("failed to dispatch alert")
		if d.recorder != nil {
			d.recorder.NotificationFailed(kind)
		}
		return false
	}

	if d.recorder != nil {
		d.recorder.NotificationSent(kind)
	}
	return true
}
