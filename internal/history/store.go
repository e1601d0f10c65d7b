// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package history keeps the readings delivered by the bridge.
package history

import (
	"context"
	"sync"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
)

// DefaultMaxReadings bounds the in-memory store.
const DefaultMaxReadings = 10000

// Store is a reading log, oldest first.
type Store interface {
	Add(ctx context.Context, r barometer.Reading) error
	Latest(ctx context.Context, limit int) ([]barometer.Reading, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close()
}

// MemoryStore keeps the most recent readings in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	maxReadings int
	readings    []barometer.Reading
}

func NewMemoryStore(maxReadings int) *MemoryStore {
	if maxReadings <= 0 {
		maxReadings = DefaultMaxReadings
	}

	return &MemoryStore{
		maxReadings: maxReadings,
		readings:    make([]barometer.Reading, 0, maxReadings),
	}
}

func (store *MemoryStore) Add(_ context.Context, r barometer.Reading) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.readings = append(store.readings, r)
	if len(store.readings) > store.maxReadings {
		store.readings = append([]barometer.Reading(nil), store.readings[len(store.readings)-store.maxReadings:]...)
	}
	return nil
}

func (store *MemoryStore) Count(context.Context) (int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.readings), nil
}

// Latest returns up to limit readings, oldest first. A non-positive limit
// returns everything.
func (store *MemoryStore) Latest(_ context.Context, limit int) ([]barometer.Reading, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if limit <= 0 || limit > len(store.readings) {
		limit = len(store.readings)
	}

	start := len(store.readings) - limit
	output := make([]barometer.Reading, limit)
	copy(output, store.readings[start:])
	return output, nil
}

func (store *MemoryStore) Ping(context.Context) error { return nil }

func (store *MemoryStore) Close() {}

var _ Store = (*MemoryStore)(nil)
