// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package barometer

import (
	"context"
	"sync"
)

const subscriptionBuffer = 16

// CurrentReading blocks until the next reading or native error arrives, or ctx
// is done. An abandoned request stays registered until the next native event.
func (b *Bridge) CurrentReading(ctx context.Context) (Reading, error) {
	type result struct {
		r   Reading
		err error
	}
	ch := make(chan result, 1)

	err := b.GetCurrentReading(
		func(r Reading) { ch <- result{r: r} },
		func(err error) { ch <- result{err: err} },
	)
	if err != nil {
		return Reading{}, err
	}

	select {
	case res := <-ch:
		return res.r, res.err
	case <-ctx.Done():
		return Reading{}, ctx.Err()
	}
}

// Subscription is a watch delivered over channels. C and Err are never
// closed; Done is closed once the watch is cancelled. Values are dropped when
// the consumer falls behind.
type Subscription struct {
	ID  WatchID
	C   <-chan Reading
	Err <-chan error

	b    *Bridge
	done chan struct{}
	once sync.Once
}

// Subscribe starts a watch that lasts until ctx is done or Close is called.
func (b *Bridge) Subscribe(ctx context.Context, opts *Options) (*Subscription, error) {
	if ctx == nil {
		return nil, ErrInvalidArgument
	}

	readings := make(chan Reading, subscriptionBuffer)
	errs := make(chan error, subscriptionBuffer)

	id, err := b.Watch(
		func(r Reading) {
			select {
			case readings <- r:
			default:
			}
		},
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
		opts,
	)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		ID:   id,
		C:    readings,
		Err:  errs,
		b:    b,
		done: make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close cancels the watch. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.CancelWatch(s.ID)
		close(s.done)
	})
}
