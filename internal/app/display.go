// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/gauge"
)

const (
	displayWidth  = 128
	displayHeight = 64

	// a factor of 1 draws a square of this many pixels
	squareUnit = 16
	squareMax  = 48
)

// gaugeState holds the latest frame for the display loop. A failure sticks
// until a reading newer than the last one shown arrives.
type gaugeState struct {
	mu       sync.RWMutex
	frame    gauge.Frame
	ts       int64
	have     bool
	failed   bool
	failedTS int64
}

func (s *gaugeState) setReading(r barometer.Reading, f gauge.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed && r.Timestamp == s.failedTS {
		return
	}
	s.frame, s.ts, s.have, s.failed = f, r.Timestamp, true, false
}

func (s *gaugeState) setFailed() {
	s.mu.Lock()
	s.failed, s.failedTS = true, s.ts
	s.mu.Unlock()
}

func (s *gaugeState) snapshot() (gauge.Frame, bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.have, s.failed
}

// newGaugeWatch feeds state from a bridge watch that is replaced after a
// native error.
func newGaugeWatch(bridge *barometer.Bridge, scaler *gauge.Scaler, every time.Duration, clk clock.Clock) (*rewatch, *gaugeState) {
	watch, state := newGaugeWatch(bridge, scaler, cfg.DemoWatchInterval(), nil)
	if err := watch.start(); err != nil {
		return err
	}
	defer watch.stop()

	ticker := time.NewTicker(cfg.DisplayInterval())
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			log.Println("display: shutting down")
			return nil
		case <-ticker.C:
			frame, have, failed := state.snapshot()
			img := renderGauge(frame, have, failed, cfg.DemoPicSize)
			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

// renderGauge draws the value and factor on the left and a square scaled
// like the demo picture in the bottom right corner.
func renderGauge(frame gauge.Frame, have, failed bool, picSize int) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	switch {
	case failed:
		drawer.Dot = fixed.P(20, 26)
		drawer.DrawString("Barometer")
		drawer.Dot = fixed.P(20, 43)
		drawer.DrawString("ERROR")
		return img
	case !have:
		drawer.Dot = fixed.P(20, 26)
		drawer.DrawString("Barometer")
		drawer.Dot = fixed.P(20, 43)
		drawer.DrawString("waiting...")
		return img
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(fmt.Sprintf("%.2f hPa", frame.Value))

	drawer.Dot = fixed.P(0, 26)
	if !finite(frame.Factor) {
		drawer.DrawString("x---")
		return img
	}
	drawer.DrawString(fmt.Sprintf("x%.3f", frame.Factor))

	side := squareSide(frame.Size, picSize)
	for x := displayWidth - side; x < displayWidth; x++ {
		for y := displayHeight - side; y < displayHeight; y++ {
			img.SetBit(x, y, image1bit.On)
		}
	}
	return img
}

// squareSide maps the demo picture size onto the 64 pixel tall panel.
func squareSide(size float64, picSize int) int {
	if !finite(size) || picSize <= 0 {
		return 0
	}
	side := int(math.Round(size / float64(picSize) * squareUnit))
	if side < 1 {
		return 1
	}
	if side > squareMax {
		return squareMax
	}
	return side
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
