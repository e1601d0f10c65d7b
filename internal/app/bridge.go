// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/history"
	"github.com/relabs-tech/barometer_bridge/internal/native"
	"github.com/relabs-tech/barometer_bridge/internal/sensors"
)

// newBridge registers the barometer plugin on a fresh host and returns a
// bridge talking to it. Closing the host releases the sensor.
func newBridge(cfg *config.Config) (*barometer.Bridge, *native.Host) {
	open := func() (native.Sensor, error) {
		s, err := sensors.Open(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	host := native.NewHost()
	host.Register(native.BarometerService, native.NewBarometerPlugin(open, native.BarometerOptions{
		SampleInterval: cfg.SampleInterval(),
		StartTimeout:   cfg.StartTimeout(),
	}))
	log.Printf("bridge: barometer plugin registered (source=%s)", cfg.SensorSource)

	return barometer.New(host), host
}

// openStore picks PostgreSQL when DATABASE_URL is set, then SQLite when
// HISTORY_SQLITE_PATH is set, and memory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		store, err := history.NewPostgresStore(ctx, cfg.DatabaseURL, int32(cfg.PGMaxConns))
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		log.Printf("history: postgres store ready (max conns %d)", cfg.PGMaxConns)
		return store, nil

	case cfg.HistorySQLitePath != "":
		store, err := history.NewSQLiteStore(ctx, cfg.HistorySQLitePath)
		if err != nil {
			return nil, fmt.Errorf("create sqlite store: %w", err)
		}
		log.Printf("history: sqlite store at %s", cfg.HistorySQLitePath)
		return store, nil

	default:
		log.Printf("history: in-memory store (max %d readings)", cfg.HistoryMaxReadings)
		return history.NewMemoryStore(cfg.HistoryMaxReadings), nil
	}
}
