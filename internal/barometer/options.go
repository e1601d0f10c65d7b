// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package barometer

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultFrequency is the watch cadence used when none is given.
const DefaultFrequency = 10 * time.Second

// Options configures a watch.
type Options struct {
	Frequency time.Duration
}

func (o *Options) frequency() time.Duration {
	if o == nil || o.Frequency <= 0 {
		return DefaultFrequency
	}
	return o.Frequency
}

// Option customizes a Bridge.
type Option func(*Bridge)

// WithClock sets the clock driving watch tickers and reading timestamps.
func WithClock(c clock.Clock) Option {
	return func(b *Bridge) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithIDGenerator sets the function producing watch ids.
func WithIDGenerator(newID func() string) Option {
	return func(b *Bridge) {
		if newID != nil {
			b.newID = newID
		}
	}
}
