package scheduler

import (
	"context"
	"fmt"
	"time"

	"token-alerts/internal/storage"
)

// PruneAlerts returns a Job deleting audit records older than maxAge.
func PruneAlerts(store storage.AlertStore, maxAge time.Duration) Job {
	return func(ctx context.Context, at time.Time) error {
		cutoff := at.Add(-maxAge)
		if err := store.DeleteAlertsBefore(ctx, cutoff); err != nil {
			return fmt.Errorf("prune alerts before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		return nil
	}
}
