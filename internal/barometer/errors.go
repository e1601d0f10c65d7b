// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package barometer

import "errors"

var (
	// ErrInvalidArgument is returned when a subscription has no success callback.
	ErrInvalidArgument = errors.New("barometer: success callback is required")

	// ErrMalformedPayload wraps native payloads that do not decode to a Reading.
	ErrMalformedPayload = errors.New("barometer: malformed native payload")
)
