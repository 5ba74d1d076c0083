package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-alerts/internal/storage"
)

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	_, err := New(Options{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunInvokesJobUntilCancelled(t *testing.T) {
	s, err := New(Options{Name: "test", Interval: 5 * time.Millisecond, Immediate: true}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			if calls.Add(1) == 2 {
				return errors.New("transient")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPruneAlerts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.InsertAlert(ctx, storage.AlertRecord{Label: "old", Balance: decimal.Zero, Threshold: decimal.Zero, CreatedAt: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = store.InsertAlert(ctx, storage.AlertRecord{Label: "new", Balance: decimal.Zero, Threshold: decimal.Zero, CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	require.NoError(t, PruneAlerts(store, 24*time.Hour)(ctx, now))

	remaining, err := store.ListRecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Label)
}
