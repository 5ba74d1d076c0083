package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	getJSONSQL = `SELECT value FROM kv_json WHERE key = $1;`

	putJSONSQL = `INSERT INTO kv_json (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value, updated_at = now();`

	getNumberSQL = `SELECT value FROM kv_numbers WHERE key = $1;`

	putNumberSQL = `INSERT INTO kv_numbers (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value, updated_at = now();`

	incrNumberSQL = `INSERT INTO kv_numbers (key, value, updated_at)
    VALUES ($1, 1, now())
    ON CONFLICT (key) DO UPDATE
    SET value = kv_numbers.value + 1, updated_at = now()
    RETURNING value;`

	insertAlertSQL = `INSERT INTO alerts (
        chain_id,
        tx_hash,
        label,
        account,
        token,
        symbol,
        balance,
        threshold,
        delivered
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9
    )
    RETURNING id, created_at;`

	alertColumns = `id,
        chain_id,
        tx_hash,
        label,
        account,
        token,
        symbol,
        balance::text,
        threshold::text,
        delivered,
        created_at`

	listRecentAlertsSQL = `SELECT ` + alertColumns + `
    FROM alerts
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	listAlertsBetweenSQL = `SELECT ` + alertColumns + `
    FROM alerts
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at, id;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`
)

// Store is the PostgreSQL-backed KV and alert audit store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// GetJSON decodes the JSON document stored at key into dest.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var raw []byte
	if err := pool.QueryRow(ctx, getJSONSQL, key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get json %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode json %s: %w", key, err)
	}
	return nil
}

// PutJSON stores value as a JSON document at key.
func (s *Store) PutJSON(ctx context.Context, key string, value any) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode json %s: %w", key, err)
	}
	if _, err := pool.Exec(ctx, putJSONSQL, key, raw); err != nil {
		return fmt.Errorf("put json %s: %w", key, err)
	}
	return nil
}

// GetNumber reads the number stored at key.
func (s *Store) GetNumber(ctx context.Context, key string) (uint64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var value int64
	if err := pool.QueryRow(ctx, getNumberSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get number %s: %w", key, err)
	}
	return uint64(value), nil
}

// PutNumber stores value at key.
func (s *Store) PutNumber(ctx context.Context, key string, value uint64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, putNumberSQL, key, int64(value)); err != nil {
		return fmt.Errorf("put number %s: %w", key, err)
	}
	return nil
}

// Incr increments the number at key in a single upsert statement.
func (s *Store) Incr(ctx context.Context, key string) (uint64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var value int64
	if err := pool.QueryRow(ctx, incrNumberSQL, key).Scan(&value); err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return uint64(value), nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		int64(alert.ChainID),
		alert.TxHash,
		alert.Label,
		alert.Account,
		alert.Token,
		alert.Symbol,
		alert.Balance.String(),
		alert.Threshold.String(),
		alert.Delivered,
	)

	rec := alert
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", err)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts, newest first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	return collectAlerts(rows, limit)
}

// ListAlertsBetween lists alerts created within [from, to).
func (s *Store) ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	return collectAlerts(rows, 0)
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func collectAlerts(rows pgx.Rows, capacity int) ([]AlertRecord, error) {
	defer rows.Close()

	alerts := make([]AlertRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlert(rows pgx.Rows) (AlertRecord, error) {
	var (
		rec          AlertRecord
		chainID      int64
		balanceStr   string
		thresholdStr string
	)

	if err := rows.Scan(
		&rec.ID,
		&chainID,
		&rec.TxHash,
		&rec.Label,
		&rec.Account,
		&rec.Token,
		&rec.Symbol,
		&balanceStr,
		&thresholdStr,
		&rec.Delivered,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}
	rec.ChainID = uint64(chainID)

	var err error
	rec.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse balance: %w", err)
	}
	rec.Threshold, err = decimal.NewFromString(thresholdStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold: %w", err)
	}
	return rec, nil
}

var (
	_ KV         = (*Store)(nil)
	_ AlertStore = (*Store)(nil)
)
