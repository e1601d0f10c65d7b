// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package barometer multiplexes the single native barometer stream to any
// number of one-shot and repeating subscribers.
//
// The native sensor runs exactly while at least one subscriber is registered.
// Every native event is fanned out to a snapshot of the subscribers taken when
// the event arrives, so callbacks may subscribe or cancel freely.
package barometer

import (
	"encoding/json"
	"log"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/relabs-tech/barometer_bridge/internal/native"
)

const (
	actionStart = "start"
	actionStop  = "stop"
)

// listener is one registered success/error callback pair.
type listener struct {
	win  func(Reading)
	fail func(error)
}

// Bridge owns the connection to the native barometer service.
type Bridge struct {
	invoker native.Invoker
	clock   clock.Clock
	newID   func() string

	mu        sync.Mutex
	running   bool
	listeners []*listener
	last      Reading
	haveLast  bool
	watches   map[WatchID]*watch

	// Native calls are queued under mu and issued outside it, in order.
	ops      []string
	flushing bool
}

func New(invoker native.Invoker, opts ...Option) *Bridge {
	b := &Bridge{
		invoker: invoker,
		clock:   clock.New(),
		newID:   uuid.NewString,
		watches: make(map[WatchID]*watch),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Running reports whether the native sensor is started.
func (b *Bridge) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Subscribers returns the number of registered callback pairs.
func (b *Bridge) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Watches returns the number of active watches.
func (b *Bridge) Watches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watches)
}

// Last returns the most recent reading, if any arrived yet.
func (b *Bridge) Last() (Reading, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.haveLast
}

// Close cancels every watch, drops every pending callback and stops the
// native sensor. The cached reading is kept.
func (b *Bridge) Close() {
	b.mu.Lock()
	watches := make([]*watch, 0, len(b.watches))
	for id, w := range b.watches {
		w.cancel()
		watches = append(watches, w)
		delete(b.watches, id)
	}
	b.listeners = nil
	if b.running {
		b.stopLocked()
	}
	b.mu.Unlock()

	for _, w := range watches {
		w.ticker.Stop()
	}
	b.flush()
}

func (b *Bridge) startLocked() {
	if b.running {
		return
	}
	b.running = true
	b.ops = append(b.ops, actionStart)
}

func (b *Bridge) stopLocked() {
	b.running = false
	b.ops = append(b.ops, actionStop)
}

// flush issues queued native calls. Only one goroutine drains at a time; a
// call made while draining (including from a synchronous native callback)
// leaves its operation to the active drainer.
func (b *Bridge) flush() {
	b.mu.Lock()
	if b.flushing {
		b.mu.Unlock()
		return
	}
	b.flushing = true

	for len(b.ops) > 0 {
		op := b.ops[0]
		b.ops = b.ops[1:]
		b.mu.Unlock()

		b.exec(op)

		b.mu.Lock()
	}
	b.flushing = false
	b.mu.Unlock()
}

func (b *Bridge) exec(action string) {
	switch action {
	case actionStart:
		log.Println("bridge: starting native barometer")
		b.invoker.Exec(native.BarometerService, actionStart, nil, b.onNativeSuccess, b.onNativeError)
	case actionStop:
		log.Println("bridge: stopping native barometer")
		b.invoker.Exec(native.BarometerService, actionStop, nil, nil, nil)
	}
}

func (b *Bridge) onNativeSuccess(payload json.RawMessage) {
	r, err := decodeReading(payload, b.clock.Now())
	if err != nil {
		log.Printf("bridge: %v", err)
		b.onNativeError(err)
		return
	}

	b.mu.Lock()
	b.last = r
	b.haveLast = true
	snapshot := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, l := range snapshot {
		l.win(r)
	}
	b.flush()
}

func (b *Bridge) onNativeError(err error) {
	b.mu.Lock()
	snapshot := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, l := range snapshot {
		l.fail(err)
	}
	b.flush()
}

func (b *Bridge) add(l *listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.startLocked()
	b.mu.Unlock()
	b.flush()
}

func (b *Bridge) remove(l *listener) {
	b.mu.Lock()
	b.removeLocked(l)
	b.mu.Unlock()
	b.flush()
}

// removeLocked drops l and stops the sensor when it was the last one.
// Removing an unknown listener does nothing.
func (b *Bridge) removeLocked(l *listener) {
	idx := slices.Index(b.listeners, l)
	if idx < 0 {
		return
	}
	b.listeners = slices.Delete(b.listeners, idx, idx+1)
	if len(b.listeners) == 0 {
		b.stopLocked()
	}
}
