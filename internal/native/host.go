// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package native

import (
	"fmt"
	"sync"
)

// Plugin executes actions for one service. Execute returns false for actions
// it does not know.
type Plugin interface {
	Execute(action string, args []any, cb *CallbackContext) bool
}

// Resetter is implemented by plugins that must release resources when the
// application view is reset.
type Resetter interface {
	Reset()
}

// Destroyer is implemented by plugins holding resources until shutdown.
type Destroyer interface {
	Destroy()
}

// Host dispatches Exec calls to registered plugins by service name.
type Host struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewHost() *Host {
	return &Host{plugins: make(map[string]Plugin)}
}

// Register binds p to service, replacing any previous plugin.
func (h *Host) Register(service string, p Plugin) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plugins[service] = p
}

func (h *Host) Exec(service, action string, args []any, win SuccessFunc, fail FailureFunc) {
	h.mu.RLock()
	p, ok := h.plugins[service]
	h.mu.RUnlock()

	cb := newCallbackContext(service+"."+action, win, fail)
	if !ok {
		cb.Error(fmt.Errorf("%w: %s", ErrServiceNotFound, service), false)
		return
	}

	if !p.Execute(action, args, cb) {
		cb.Error(fmt.Errorf("%w: %s.%s", ErrInvalidAction, service, action), false)
	}
}

// Reset forwards a view reset to every plugin that supports it.
func (h *Host) Reset() {
	for _, p := range h.snapshot() {
		if r, ok := p.(Resetter); ok {
			r.Reset()
		}
	}
}

// Close destroys every plugin that supports it.
func (h *Host) Close() {
	for _, p := range h.snapshot() {
		if d, ok := p.(Destroyer); ok {
			d.Destroy()
		}
	}
}

func (h *Host) snapshot() []Plugin {
	h.mu.RLock()
	defer h.mu.RUnlock()

	plugins := make([]Plugin, 0, len(h.plugins))
	for _, p := range h.plugins {
		plugins = append(plugins, p)
	}
	return plugins
}

var _ Invoker = (*Host)(nil)
