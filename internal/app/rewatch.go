// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
)

const watchRetryDelay = 5 * time.Second

var errWatchStopped = errors.New("watch stopped")

// rewatch is a bridge watch that replaces itself a while after its native
// side failed. A failed watch only re-delivers the cached reading.
type rewatch struct {
	name      string
	bridge    *barometer.Bridge
	every     time.Duration
	retry     time.Duration
	clock     clock.Clock
	onReading func(barometer.Reading)
	onFailure func(error)

	mu      sync.Mutex
	id      barometer.WatchID
	stopped bool
	retryT  *clock.Timer
}

func newRewatch(name string, bridge *barometer.Bridge, every time.Duration, clk clock.Clock, onReading func(barometer.Reading), onFailure func(error)) *rewatch {
	if clk == nil {
		clk = clock.New()
	}
	return &rewatch{
		name:      name,
		bridge:    bridge,
		every:     every,
		retry:     watchRetryDelay,
		clock:     clk,
		onReading: onReading,
		onFailure: onFailure,
	}
}

func (w *rewatch) start() error {
	id, err := w.bridge.Watch(w.onReading, w.onError, &barometer.Options{Frequency: w.every})
	if err != nil {
		return fmt.Errorf("watch barometer: %w", err)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		w.bridge.CancelWatch(id)
		return errWatchStopped
	}
	w.id = id
	w.mu.Unlock()
	return nil
}

func (w *rewatch) onError(err error) {
	log.Printf("%s: barometer error: %v (retrying in %s)", w.name, err, w.retry)
	if w.onFailure != nil {
		w.onFailure(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.retryT != nil {
		return
	}
	w.retryT = w.clock.AfterFunc(w.retry, w.restart)
}

func (w *rewatch) restart() {
	w.mu.Lock()
	w.retryT = nil
	if w.stopped {
		w.mu.Unlock()
		return
	}
	old := w.id
	w.mu.Unlock()

	w.bridge.CancelWatch(old)
	if err := w.start(); err != nil && !errors.Is(err, errWatchStopped) {
		log.Printf("%s: restart failed: %v", w.name, err)
	}
}

func (w *rewatch) stop() {
	w.mu.Lock()
	w.stopped = true
	id := w.id
	if w.retryT != nil {
		w.retryT.Stop()
		w.retryT = nil
	}
	w.mu.Unlock()

	w.bridge.CancelWatch(id)
}
