// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewSampleConvertsPascalToHectopascal(t *testing.T) {
	s := NewSample("mock", 101325, 21.5, AccuracyHigh, time.Unix(1738886400, 0))

	if s.PressureHPa != 1013.25 {
		t.Fatalf("expected 1013.25 hPa, got %v", s.PressureHPa)
	}
	if s.Accuracy != AccuracyHigh {
		t.Fatalf("expected accuracy %d, got %d", AccuracyHigh, s.Accuracy)
	}
}

func TestSampleJSONFieldNames(t *testing.T) {
	encoded, err := json.Marshal(NewSample("bmp280", 100000, 20, AccuracyMedium, time.Unix(0, 0).UTC()))
	if err != nil {
		t.Fatalf("marshal sample: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(encoded, &fields); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	for _, key := range []string{"source", "temp_c", "pressure_pa", "pressure_hpa", "accuracy", "time"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected field %q in %s", key, encoded)
		}
	}
}
