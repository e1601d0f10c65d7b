// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gauge turns pressure readings into the scale factor the demo
// displays use to grow and shrink their picture.
package gauge

import (
	"math"
	"sync"
)

// DefaultPicSize is the picture edge at factor 1.
const DefaultPicSize = 100

// Limits are the user-chosen pressure thresholds in hPa.
type Limits struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Factor maps value linearly so that Min gives 1 and Max gives 2. Min == Max
// yields ±Inf or NaN.
func (l Limits) Factor(value float64) float64 {
	return (value-float64(l.Min))/float64(l.Max-l.Min) + 1
}

// PictureSize is the edge length of the demo picture for factor.
func PictureSize(initSize int, factor float64) float64 {
	return float64(initSize) * math.Pow(factor, 5)
}

// Frame is one rendered state of the demo.
type Frame struct {
	Value  float64 `json:"val"`
	Factor float64 `json:"factor"`
	Size   float64 `json:"size"`
}

// Scaler holds limits that may change while readings arrive.
type Scaler struct {
	mu      sync.RWMutex
	limits  Limits
	picSize int
}

func NewScaler(limits Limits, picSize int) *Scaler {
	if picSize <= 0 {
		picSize = DefaultPicSize
	}
	return &Scaler{limits: limits, picSize: picSize}
}

func (s *Scaler) Limits() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

func (s *Scaler) SetLimits(l Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = l
}

func (s *Scaler) SetMin(min int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits.Min = min
}

func (s *Scaler) SetMax(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits.Max = max
}

// Frame scales value with the current limits.
func (s *Scaler) Frame(value float64) Frame {
	s.mu.RLock()
	limits, picSize := s.limits, s.picSize
	s.mu.RUnlock()

	factor := limits.Factor(value)
	return Frame{Value: value, Factor: factor, Size: PictureSize(picSize, factor)}
}
