// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package barometer

import (
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

// WatchID identifies a repeating subscription.
type WatchID string

type watch struct {
	id        WatchID
	listener  *listener
	ticker    *clock.Ticker
	done      chan struct{}
	cancelled bool // guarded by Bridge.mu
}

// cancel marks w terminal. Caller holds Bridge.mu.
func (w *watch) cancel() {
	if w.cancelled {
		return
	}
	w.cancelled = true
	close(w.done)
}

// GetCurrentReading delivers the next reading to onSuccess, or the next native
// error to onError, exactly once. onError may be nil.
func (b *Bridge) GetCurrentReading(onSuccess func(Reading), onError func(error)) error {
	if onSuccess == nil {
		return ErrInvalidArgument
	}

	var delivered atomic.Bool
	l := &listener{}
	l.win = func(r Reading) {
		if !delivered.CompareAndSwap(false, true) {
			return
		}
		b.remove(l)
		onSuccess(r)
	}
	l.fail = func(err error) {
		if !delivered.CompareAndSwap(false, true) {
			return
		}
		b.remove(l)
		if onError != nil {
			onError(err)
		}
	}

	b.add(l)
	return nil
}

// Watch re-delivers the cached reading to onSuccess every opts.Frequency
// until CancelWatch is called. Ticks before the first reading are skipped.
// A native error is passed to onError and unregisters the watch's callback
// pair; the ticker keeps running until the watch is cancelled.
func (b *Bridge) Watch(onSuccess func(Reading), onError func(error), opts *Options) (WatchID, error) {
	if onSuccess == nil {
		return "", ErrInvalidArgument
	}

	l := &listener{win: func(Reading) {}}
	l.fail = func(err error) {
		b.remove(l)
		if onError != nil {
			onError(err)
		}
	}

	w := &watch{
		id:       WatchID(b.newID()),
		listener: l,
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	w.ticker = b.clock.Ticker(opts.frequency())
	b.watches[w.id] = w
	b.listeners = append(b.listeners, l)
	wasRunning := b.running
	last, haveLast := b.last, b.haveLast
	b.startLocked()
	b.mu.Unlock()

	go b.runWatch(w, onSuccess)

	if wasRunning {
		// skip the warm-up wait when a value is already known
		if haveLast {
			onSuccess(last)
		}
	} else {
		b.flush()
	}
	return w.id, nil
}

// CancelWatch stops the watch with the given id. Unknown ids are ignored.
func (b *Bridge) CancelWatch(id WatchID) {
	b.mu.Lock()
	w, ok := b.watches[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.watches, id)
	w.cancel()
	b.removeLocked(w.listener)
	b.mu.Unlock()

	w.ticker.Stop()
	b.flush()
}

func (b *Bridge) runWatch(w *watch, onSuccess func(Reading)) {
	for {
		select {
		case <-w.done:
			return
		case <-w.ticker.C:
			b.mu.Lock()
			cancelled := w.cancelled
			r, ok := b.last, b.haveLast
			b.mu.Unlock()

			if cancelled || !ok {
				continue
			}
			select {
			case <-w.done:
				return
			default:
			}
			onSuccess(r)
		}
	}
}
