// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package history

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
)

// SQLiteStore logs readings to a local database file, for boards without a
// PostgreSQL server.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (store *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS pressure_readings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp INTEGER NOT NULL,
  pressure_hpa REAL NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pressure_readings_timestamp ON pressure_readings(timestamp);
`

	_, err := store.db.ExecContext(ctx, schema)
	return err
}

func (store *SQLiteStore) Add(ctx context.Context, r barometer.Reading) error {
	const query = `
INSERT INTO pressure_readings (timestamp, pressure_hpa, created_at) VALUES (?, ?, ?)
`

	_, err := store.db.ExecContext(ctx, query, r.Timestamp, r.Value, time.Now().UnixMilli())
	return err
}

func (store *SQLiteStore) Latest(ctx context.Context, limit int) ([]barometer.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
SELECT timestamp, pressure_hpa
FROM pressure_readings
ORDER BY id DESC
LIMIT ?
`

	rows, err := store.db.QueryContext(ctx, query, limit)
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

func (store *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pressure_readings`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (store *SQLiteStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return store.db.PingContext(pingCtx)
}

func (store *SQLiteStore) Close() {
	store.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
