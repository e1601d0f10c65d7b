// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/env"
)

// Mock is a random-walk barometer for development without hardware.
type Mock struct {
	mu          sync.Mutex
	rng         *rand.Rand
	baseline    float64 // hPa
	pressure    float64 // hPa
	temperature float64 // °C
	closed      bool
}

// mockSpan bounds the walk around the baseline, roughly a strong weather front.
const mockSpan = 18.0

// NewMock starts the walk at baselineHPa. A zero seed picks one from the clock.
func NewMock(baselineHPa float64, seed int64) *Mock {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Printf("sensors: mock barometer seed=%d baseline=%.1f hPa", seed, baselineHPa)

	return &Mock{
		rng:         rand.New(rand.NewSource(seed)),
		baseline:    baselineHPa,
		pressure:    baselineHPa,
		temperature: 21.0,
	}
}

func (m *Mock) Sense() (env.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return env.Sample{}, ErrClosed
	}

	m.temperature = clamp(m.temperature+m.rng.NormFloat64()*0.15, 16.0, 32.0)
	m.pressure = clamp(m.pressure+m.rng.NormFloat64()*0.25, m.baseline-mockSpan, m.baseline+mockSpan)

	hpa := math.Round(m.pressure*100) / 100
	return env.NewSample(config.SourceMock, hpa*100, math.Round(m.temperature*10)/10, env.AccuracyHigh, time.Now()), nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func clamp(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
