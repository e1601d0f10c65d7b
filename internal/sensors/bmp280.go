// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/env"
)

var (
	hostOnce    sync.Once
	hostInitErr error
)

// initHost initializes the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}

// BMP280Options selects the bus and sampling settings. SPIDevice wins over
// I2CBus when both are set.
type BMP280Options struct {
	SPIDevice string
	I2CBus    string
	I2CAddr   uint16

	PressureOSR byte // 0-5 (off, 1x ... 16x)
	TempOSR     byte // 0-5
	IIRFilter   byte // 0-4 (off, 2 ... 16)
}

// BMP280 reads temperature and pressure from a Bosch BMP280.
type BMP280 struct {
	mu  sync.Mutex
	dev *bmxx80.Dev
	bus io.Closer
}

func OpenBMP280(o BMP280Options) (*BMP280, error) {
	if err := initHost(); err != nil {
		return nil, err
	}

	opts := bmxx80.Opts{
		Temperature: bmxx80.Oversampling(o.TempOSR),
		Pressure:    bmxx80.Oversampling(o.PressureOSR),
		Filter:      bmxx80.Filter(o.IIRFilter),
	}

	if o.SPIDevice != "" {
		port, err := spireg.Open(o.SPIDevice)
		if err != nil {
			return nil, fmt.Errorf("BMP SPI open: %w", err)
		}
		dev, err := bmxx80.NewSPI(port, &opts)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("BMP init: %w", err)
		}
		log.Printf("sensors: BMP280 initialized on SPI %s", o.SPIDevice)
		return &BMP280{dev: dev, bus: port}, nil
	}

	bus, err := i2creg.Open(o.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("BMP I2C open: %w", err)
	}
	dev, err := bmxx80.NewI2C(bus, o.I2CAddr, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("BMP init: %w", err)
	}
	log.Printf("sensors: BMP280 initialized on I2C %s addr=%#x", o.I2CBus, o.I2CAddr)
	return &BMP280{dev: dev, bus: bus}, nil
}

// Sense reads one sample. The chip has no accuracy report, so every
// successful read is marked high accuracy.
func (b *BMP280) Sense() (env.Sample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dev == nil {
		return env.Sample{}, ErrClosed
	}

	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("BMP sense: %w", err)
	}

	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return env.NewSample(config.SourceBMP280, pressurePa, e.Temperature.Celsius(), env.AccuracyHigh, time.Now()), nil
}

func (b *BMP280) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dev == nil {
		return nil
	}
	if err := b.dev.Halt(); err != nil {
		log.Printf("sensors: BMP halt error: %v", err)
	}
	b.dev = nil
	return b.bus.Close()
}
