// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package barometer

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reading is one barometer sample as delivered to subscribers.
type Reading struct {
	Value     float64 `json:"val"`       // hPa
	Timestamp int64   `json:"timestamp"` // unix ms
}

func (r Reading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// decodeReading parses a native success payload. A missing timestamp is
// replaced by now.
func decodeReading(payload json.RawMessage, now time.Time) (Reading, error) {
	var raw struct {
		Val       *float64 `json:"val"`
		Timestamp int64    `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Val == nil {
		return Reading{}, fmt.Errorf("%w: missing val in %s", ErrMalformedPayload, payload)
	}

	ts := raw.Timestamp
	if ts == 0 {
		ts = now.UnixMilli()
	}
	return Reading{Value: *raw.Val, Timestamp: ts}, nil
}
