// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
	"github.com/relabs-tech/barometer_bridge/internal/history"
)

func waitCount(t *testing.T, store history.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n, _ := store.Count(context.Background()); n == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	n, _ := store.Count(context.Background())
	t.Fatalf("expected %d stored readings, got %d", want, n)
}

func TestRecorderStoresEachReadingOnce(t *testing.T) {
	fn := &fakeNative{}
	mock := clock.NewMock()
	bridge := barometer.New(fn, barometer.WithClock(mock))
	store := history.NewMemoryStore(10)

	rec := newRecorder(bridge, time.Second, mock, nil, store)
	if err := rec.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rec.stop()

	fn.waitStarts(t, 1)
	fn.emit(1010, 1000)
	mock.Add(time.Second)
	waitCount(t, store, 1)

	// the same cached reading is delivered again on the next tick
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	waitCount(t, store, 1)

	fn.emit(1011, 2000)
	mock.Add(time.Second)
	waitCount(t, store, 2)

	latest, _ := store.Latest(context.Background(), 2)
	if latest[0].Value != 1010 || latest[1].Value != 1011 {
		t.Fatalf("unexpected stored readings %+v", latest)
	}
}

func TestRecorderResubscribesAfterError(t *testing.T) {
	fn := &fakeNative{}
	mock := clock.NewMock()
	bridge := barometer.New(fn, barometer.WithClock(mock))
	store := history.NewMemoryStore(10)

	rec := newRecorder(bridge, time.Second, mock, nil, store)
	if err := rec.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rec.stop()

	fn.waitStarts(t, 1)
	fn.emitError(errors.New("sensor gone"))
	if bridge.Running() {
		t.Fatalf("expected bridge stopped after the only listener failed")
	}

	mock.Add(watchRetryDelay)
	fn.waitStarts(t, 2)

	deadline := time.Now().Add(time.Second)
	for bridge.Watches() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if bridge.Watches() != 1 {
		t.Fatalf("expected the old watch replaced, got %d watches", bridge.Watches())
	}
}

func TestRecorderStopCancelsRetry(t *testing.T) {
	fn := &fakeNative{}
	mock := clock.NewMock()
	bridge := barometer.New(fn, barometer.WithClock(mock))

	rec := newRecorder(bridge, time.Second, mock, nil, history.NewMemoryStore(10))
	if err := rec.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	fn.waitStarts(t, 1)
	fn.emitError(errors.New("sensor gone"))
	rec.stop()

	mock.Add(watchRetryDelay)
	time.Sleep(10 * time.Millisecond)

	if bridge.Watches() != 0 || bridge.Running() {
		t.Fatalf("expected nothing running after stop, actions %v", fn.actions())
	}
}
