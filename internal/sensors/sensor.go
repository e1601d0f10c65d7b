// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the pressure sources the barometer plugin samples.
package sensors

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/env"
)

// PressureSensor is a source of environmental samples.
type PressureSensor interface {
	Sense() (env.Sample, error)
	Close() error
}

var (
	// ErrNoSample is returned by streaming sources before their first message.
	ErrNoSample = errors.New("sensors: no sample received yet")

	ErrUnknownSource = errors.New("sensors: unknown source")
	ErrClosed        = errors.New("sensors: sensor closed")
)

// Open builds the sensor selected by cfg.SensorSource.
func Open(cfg *config.Config) (PressureSensor, error) {
	switch cfg.SensorSource {
	case config.SourceBMP280:
		b, err := OpenBMP280(BMP280Options{
			SPIDevice:   cfg.BMPSPIDevice,
			I2CBus:      cfg.BMPI2CBus,
			I2CAddr:     cfg.BMPI2CAddr,
			PressureOSR: cfg.BMPPressureOSR,
			TempOSR:     cfg.BMPTempOSR,
			IIRFilter:   cfg.BMPIIRFilter,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.SourceNMEA:
		n, err := OpenNMEA(cfg.NMEASerialPort, cfg.NMEABaudRate)
		if err != nil {
			return nil, err
		}
		return n, nil
	case config.SourceMQTT:
		m, err := OpenMQTT(cfg.MQTTBroker, cfg.MQTTClientIDBridge, cfg.TopicPressure)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.SourceMock:
		return NewMock(cfg.MockBaselineHPa, cfg.MockSeed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.SensorSource)
	}
}
