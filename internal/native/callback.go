// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package native

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Status of a plugin result.
type Status int

const (
	StatusNoResult Status = iota
	StatusOK
	StatusError
)

// Result is what a plugin sends back for an action. With KeepCallback set the
// callback context stays open for further results (continuous sensors).
type Result struct {
	Status       Status
	Payload      any
	Err          error
	KeepCallback bool
}

// CallbackContext routes plugin results to the caller's win/fail pair.
type CallbackContext struct {
	name string
	win  SuccessFunc
	fail FailureFunc

	mu       sync.Mutex
	finished bool
}

func newCallbackContext(name string, win SuccessFunc, fail FailureFunc) *CallbackContext {
	return &CallbackContext{name: name, win: win, fail: fail}
}

// Finished reports whether a final (non-keep) result has been sent.
func (c *CallbackContext) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// SendResult delivers r. Results sent after a final one are dropped.
func (c *CallbackContext) SendResult(r Result) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	if !r.KeepCallback {
		c.finished = true
	}
	c.mu.Unlock()

	switch r.Status {
	case StatusOK:
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			log.Printf("native: %s payload marshal error: %v", c.name, err)
			c.deliverError(fmt.Errorf("native: %s payload: %w", c.name, err))
			return
		}
		if c.win != nil {
			c.win(payload)
		}
	case StatusError:
		err := r.Err
		if err == nil {
			err = &Error{Message: fmt.Sprint(r.Payload)}
		}
		c.deliverError(err)
	}
}

func (c *CallbackContext) deliverError(err error) {
	if c.fail != nil {
		c.fail(err)
	}
}

// Success sends an OK result carrying payload.
func (c *CallbackContext) Success(payload any, keep bool) {
	c.SendResult(Result{Status: StatusOK, Payload: payload, KeepCallback: keep})
}

// Error sends an Error result.
func (c *CallbackContext) Error(err error, keep bool) {
	c.SendResult(Result{Status: StatusError, Err: err, KeepCallback: keep})
}

// NoResult acknowledges an action without delivering anything.
func (c *CallbackContext) NoResult(keep bool) {
	c.SendResult(Result{Status: StatusNoResult, KeepCallback: keep})
}
