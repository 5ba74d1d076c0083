package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key or record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// KV is the durable key/value store shared across invocations.
type KV interface {
	GetJSON(ctx context.Context, key string, dest any) error
	PutJSON(ctx context.Context, key string, value any) error
	GetNumber(ctx context.Context, key string) (uint64, error)
	PutNumber(ctx context.Context, key string, value uint64) error
	// Incr atomically adds one to the number at key (absent counts as 0) and returns the new value.
	Incr(ctx context.Context, key string) (uint64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}
