// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package history

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
)

// PostgresStore logs readings to the pressure_readings table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string, maxConns int32) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (store *PostgresStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS pressure_readings (
  id BIGSERIAL PRIMARY KEY,
  timestamp BIGINT NOT NULL,
  pressure_hpa DOUBLE PRECISION NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_pressure_readings_timestamp ON pressure_readings(timestamp DESC);
`

	_, err := store.pool.Exec(ctx, schema)
	return err
}

func (store *PostgresStore) Add(ctx context.Context, r barometer.Reading) error {
	const query = `
INSERT INTO pressure_readings (timestamp, pressure_hpa) VALUES ($1, $2)
`

	_, err := store.pool.Exec(ctx, query, r.Timestamp, r.Value)
	return err
}

func (store *PostgresStore) Latest(ctx context.Context, limit int) ([]barometer.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
SELECT timestamp, pressure_hpa
FROM pressure_readings
ORDER BY id DESC
LIMIT $1
`

	rows, err := store.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]barometer.Reading, 0, limit)
	for rows.Next() {
		var r barometer.Reading
		if err := rows.Scan(&r.Timestamp, &r.Value); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(readings)
	return readings, nil
}

func (store *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pressure_readings`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (store *PostgresStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return store.pool.Ping(pingCtx)
}

func (store *PostgresStore) Close() {
	store.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
