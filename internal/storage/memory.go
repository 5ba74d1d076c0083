package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps KV data and alerts in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	numbers map[string]uint64
	alerts  []AlertRecord
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string][]byte),
		numbers: make(map[string]uint64),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetJSON decodes the document at key into dest.
func (m *MemoryStore) GetJSON(_ context.Context, key string, dest any) error {
	m.mu.RLock()
	raw, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode json %s: %w", key, err)
	}
	return nil
}

// PutJSON stores a JSON encoding of value, so later mutation of value is not observed.
func (m *MemoryStore) PutJSON(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode json %s: %w", key, err)
	}
	m.mu.Lock()
	m.docs[key] = raw
	m.mu.Unlock()
	return nil
}

// GetNumber reads the number at key.
func (m *MemoryStore) GetNumber(_ context.Context, key string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.numbers[key]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

// PutNumber stores value at key.
func (m *MemoryStore) PutNumber(_ context.Context, key string, value uint64) error {
	m.mu.Lock()
	m.numbers[key] = value
	m.mu.Unlock()
	return nil
}

// Incr increments the number at key under the store lock.
func (m *MemoryStore) Incr(_ context.Context, key string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numbers[key]++
	return m.numbers[key], nil
}

// InsertAlert appends an alert record.
func (m *MemoryStore) InsertAlert(_ context.Context, alert AlertRecord) (AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	alert.ID = m.nextID
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = m.now()
	}
	m.alerts = append(m.alerts, alert)
	return alert, nil
}

// ListRecentAlerts returns up to limit alerts, newest first.
func (m *MemoryStore) ListRecentAlerts(_ context.Context, limit int) ([]AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AlertRecord, len(m.alerts))
	copy(out, m.alerts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListAlertsBetween returns alerts created within [from, to), oldest first.
func (m *MemoryStore) ListAlertsBetween(_ context.Context, from, to time.Time) ([]AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []AlertRecord
	for _, a := range m.alerts {
		if !a.CreatedAt.Before(from) && a.CreatedAt.Before(to) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteAlertsBefore drops alerts created before olderThan.
func (m *MemoryStore) DeleteAlertsBefore(_ context.Context, olderThan time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if !a.CreatedAt.Before(olderThan) {
			kept = append(kept, a)
		}
	}
	m.alerts = kept
	return nil
}

var (
	_ KV         = (*MemoryStore)(nil)
	_ AlertStore = (*MemoryStore)(nil)
)
