package storage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"token-alerts/internal/config"
)

// setupPostgres starts a PostgreSQL container and applies the embedded schema.
func setupPostgres(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 10})
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, pool))

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

func TestStoreKV(t *testing.T) {
	pool, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	var raw json.RawMessage
	assert.ErrorIs(t, store.GetJSON(ctx, "TOKEN_THRESHOLD", &raw), ErrNotFound)

	require.NoError(t, store.PutJSON(ctx, "TOKEN_THRESHOLD", map[string]any{"10": map[string]any{}}))
	require.NoError(t, store.GetJSON(ctx, "TOKEN_THRESHOLD", &raw))
	assert.JSONEq(t, `{"10":{}}`, string(raw))

	_, err := store.GetNumber(ctx, "HEART_BEAT_COUNTER")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := store.Incr(ctx, "HEART_BEAT_COUNTER")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	require.NoError(t, store.PutNumber(ctx, "HEART_BEAT_COUNTER", 199))
	v, err = store.Incr(ctx, "HEART_BEAT_COUNTER")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), v)
}

func TestStoreConcurrentIncrLosesNothing(t *testing.T) {
	pool, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Incr(ctx, "counter")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, err := store.GetNumber(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), v)
}

func TestStoreAlerts(t *testing.T) {
	pool, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	rec, err := store.InsertAlert(ctx, AlertRecord{
		ChainID:   10,
		TxHash:    "0xabc",
		Label:     "Relayer",
		Account:   "0xFf32609a2Ee397857841C46d96Edb85F0Ac64d61",
		Token:     "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		Symbol:    "USDC",
		Balance:   decimal.RequireFromString("5.25"),
		Threshold: decimal.RequireFromString("5.5"),
		Delivered: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	recent, err := store.ListRecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Balance.Equal(decimal.RequireFromString("5.25")))
	assert.Equal(t, "USDC", recent[0].Symbol)
	assert.True(t, recent[0].Delivered)

	between, err := store.ListAlertsBetween(ctx, rec.CreatedAt.Add(-time.Minute), rec.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, between, 1)

	require.NoError(t, store.DeleteAlertsBefore(ctx, rec.CreatedAt.Add(time.Second)))
	recent, err = store.ListRecentAlerts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestRedisKV(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	kv := NewRedisKVFromClient(redis.NewClient(&redis.Options{Addr: endpoint}), "test:")
	defer kv.Close()

	_, err = kv.GetNumber(ctx, "n")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := kv.Incr(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	require.NoError(t, kv.PutNumber(ctx, "n", 99))
	v, err = kv.Incr(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v)

	require.NoError(t, kv.PutJSON(ctx, "doc", map[string]int{"a": 1}))
	var dest map[string]int
	require.NoError(t, kv.GetJSON(ctx, "doc", &dest))
	assert.Equal(t, 1, dest["a"])
}
