// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "time"

// Accuracy mirrors the sensor status levels reported by mobile platforms.
type Accuracy int

const (
	AccuracyUnreliable Accuracy = 0
	AccuracyLow        Accuracy = 1
	AccuracyMedium     Accuracy = 2
	AccuracyHigh       Accuracy = 3
)

// Sample represents a single environmental measurement (BMP, weather station, ...).
type Sample struct {
	Source string `json:"source"` // "bmp280", "nmea", "mqtt", "mock"

	Temperature float64  `json:"temp_c"`       // °C
	Pressure    float64  `json:"pressure_pa"`  // Pa
	PressureHPa float64  `json:"pressure_hpa"` // hPa (same as mbar)
	Accuracy    Accuracy `json:"accuracy"`

	Time time.Time `json:"time"`
}

// NewSample fills the derived pressure unit from a value in pascal.
func NewSample(source string, pressurePa, tempC float64, accuracy Accuracy, t time.Time) Sample {
	return Sample{
		Source:      source,
		Temperature: tempC,
		Pressure:    pressurePa,
		PressureHPa: pressurePa / 100.0, // 1 hPa = 100 Pa
		Accuracy:    accuracy,
		Time:        t,
	}
}
