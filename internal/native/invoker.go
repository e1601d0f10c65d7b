// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package native is the boundary between the barometer bridge and the code
// that actually talks to the sensor. The bridge only sees Invoker; Host and
// BarometerPlugin are the Go-side implementation used on Linux boards.
package native

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SuccessFunc receives the JSON payload of an OK result.
type SuccessFunc func(payload json.RawMessage)

// FailureFunc receives the error of an Error result, unchanged.
type FailureFunc func(err error)

// Invoker runs a named action on a native service. Results arrive later (or
// synchronously) through win/fail; either may be nil when the caller does not
// care about the outcome.
type Invoker interface {
	Exec(service, action string, args []any, win SuccessFunc, fail FailureFunc)
}

// InvokerFunc adapts an ordinary function to the Invoker interface.
type InvokerFunc func(service, action string, args []any, win SuccessFunc, fail FailureFunc)

func (f InvokerFunc) Exec(service, action string, args []any, win SuccessFunc, fail FailureFunc) {
	f(service, action, args, win, fail)
}

var (
	ErrServiceNotFound = errors.New("native: service not found")
	ErrInvalidAction   = errors.New("native: invalid action")
)

// Error is a failure reported by a plugin. It crosses the bridge untouched.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("native error %d: %s", e.Code, e.Message)
}
