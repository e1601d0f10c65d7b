// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package native

import (
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/barometer_bridge/internal/env"
)

// BarometerService is the service name the bridge invokes.
const BarometerService = "Barometer"

// BarometerStatus is the listener state of the barometer plugin.
type BarometerStatus int

const (
	StatusStopped BarometerStatus = iota
	StatusStarting
	StatusRunning
	StatusFailedToStart
)

// ErrCodeFailedToStart is the code of every error the plugin reports.
const ErrCodeFailedToStart = int(StatusFailedToStart)

const (
	msgNoSensor      = "No sensors found to register barometer listening to."
	msgStartTimedOut = "Barometer could not be started."
)

const (
	DefaultSampleInterval = 60 * time.Millisecond // roughly a UI-rate sensor delay
	DefaultStartTimeout   = 2 * time.Second
)

// Sensor is the pressure source the plugin samples.
type Sensor interface {
	Sense() (env.Sample, error)
	Close() error
}

// SensorOpener opens the sensor each time the plugin starts.
type SensorOpener func() (Sensor, error)

// BarometerOptions tunes the plugin. Zero values pick the defaults.
type BarometerOptions struct {
	SampleInterval time.Duration
	StartTimeout   time.Duration
	Clock          clock.Clock
}

// pressurePayload is the JSON object sent to the bridge on every sample.
type pressurePayload struct {
	Val       float64 `json:"val"`
	Timestamp int64   `json:"timestamp"`
}

// BarometerPlugin listens to a pressure sensor and streams the latest value
// over the callback context of the last "start" action.
type BarometerPlugin struct {
	open           SensorOpener
	clock          clock.Clock
	sampleInterval time.Duration
	startTimeout   time.Duration

	mu        sync.Mutex
	status    BarometerStatus
	accuracy  env.Accuracy
	pressure  float64 // hPa, most recent accepted value
	timestamp int64   // unix ms of most recent accepted value
	sensor    Sensor
	cb        *CallbackContext
	stopCh    chan struct{}
	timeout   *clock.Timer
}

func NewBarometerPlugin(open SensorOpener, opts BarometerOptions) *BarometerPlugin {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &BarometerPlugin{
		open:           open,
		clock:          opts.Clock,
		sampleInterval: opts.SampleInterval,
		startTimeout:   opts.StartTimeout,
		status:         StatusStopped,
		accuracy:       env.AccuracyUnreliable,
	}
}

// Status returns the current listener state.
func (p *BarometerPlugin) Status() BarometerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *BarometerPlugin) Execute(action string, _ []any, cb *CallbackContext) bool {
	switch action {
	case "start":
		p.mu.Lock()
		p.cb = cb
		running := p.status == StatusRunning
		p.mu.Unlock()

		if !running {
			p.start()
		}
	case "stop":
		p.mu.Lock()
		// a listener that timed out may still be polling
		active := p.status != StatusStopped
		p.mu.Unlock()

		if active {
			p.stop()
		}
	default:
		return false
	}

	cb.NoResult(true)
	return true
}

// Reset stops the listener when the view navigates away.
func (p *BarometerPlugin) Reset() {
	if p.Status() == StatusRunning {
		p.stop()
	}
}

// Destroy shuts the listener down for good.
func (p *BarometerPlugin) Destroy() {
	p.stop()
}

func (p *BarometerPlugin) start() BarometerStatus {
	p.mu.Lock()
	if p.status == StatusRunning || p.status == StatusStarting {
		status := p.status
		p.mu.Unlock()
		return status
	}
	p.status = StatusStarting
	// A listener that timed out may still be polling.
	staleStop, staleSensor := p.stopCh, p.sensor
	p.stopCh, p.sensor = nil, nil
	p.mu.Unlock()

	if staleStop != nil {
		close(staleStop)
	}
	if staleSensor != nil {
		if err := staleSensor.Close(); err != nil {
			log.Printf("barometer: stale sensor close error: %v", err)
		}
	}

	sensor, err := p.open()
	if err != nil || sensor == nil {
		log.Printf("barometer: no sensor available: %v", err)
		p.mu.Lock()
		p.status = StatusFailedToStart
		p.mu.Unlock()
		p.fail(ErrCodeFailedToStart, msgNoSensor)
		return StatusFailedToStart
	}

	stopCh := make(chan struct{})

	p.mu.Lock()
	if p.status != StatusStarting {
		// stopped while the sensor was opening
		status := p.status
		p.mu.Unlock()
		if err := sensor.Close(); err != nil {
			log.Printf("barometer: sensor close error: %v", err)
		}
		return status
	}
	p.sensor = sensor
	p.stopCh = stopCh
	p.stopTimeoutLocked()
	p.timeout = p.clock.AfterFunc(p.startTimeout, p.onTimeout)
	ticker := p.clock.Ticker(p.sampleInterval)
	p.mu.Unlock()

	go p.poll(sensor, ticker, stopCh)

	log.Printf("barometer: listener starting (interval=%s timeout=%s)", p.sampleInterval, p.startTimeout)
	return StatusStarting
}

func (p *BarometerPlugin) stop() {
	p.mu.Lock()
	p.stopTimeoutLocked()
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	sensor := p.sensor
	p.sensor = nil
	wasStopped := p.status == StatusStopped
	p.status = StatusStopped
	p.accuracy = env.AccuracyUnreliable
	p.mu.Unlock()

	if sensor != nil {
		if err := sensor.Close(); err != nil {
			log.Printf("barometer: sensor close error: %v", err)
		}
	}
	if !wasStopped {
		log.Println("barometer: listener stopped")
	}
}

func (p *BarometerPlugin) stopTimeoutLocked() {
	if p.timeout != nil {
		p.timeout.Stop()
		p.timeout = nil
	}
}

// onTimeout fires startTimeout after start; a listener that has not produced
// a single sample by then is reported as failed.
func (p *BarometerPlugin) onTimeout() {
	p.mu.Lock()
	if p.status != StatusStarting {
		p.mu.Unlock()
		return
	}
	p.status = StatusFailedToStart
	p.mu.Unlock()

	p.fail(ErrCodeFailedToStart, msgStartTimedOut)
}

func (p *BarometerPlugin) poll(sensor Sensor, ticker *clock.Ticker, stopCh <-chan struct{}) {
	defer ticker.Stop()

	lastErr := ""
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			sample, err := sensor.Sense()
			if err != nil {
				if err.Error() != lastErr {
					log.Printf("barometer: sensor read error: %v", err)
					lastErr = err.Error()
				}
				continue
			}
			lastErr = ""
			p.onSample(sample, stopCh)
		}
	}
}

func (p *BarometerPlugin) onSample(sample env.Sample, stopCh <-chan struct{}) {
	p.mu.Lock()
	// A poller from a previous start may still deliver one last sample.
	if p.status == StatusStopped || p.stopCh != stopCh {
		p.mu.Unlock()
		return
	}
	p.status = StatusRunning
	p.accuracy = sample.Accuracy

	if p.accuracy < env.AccuracyMedium {
		p.mu.Unlock()
		return
	}

	p.timestamp = p.clock.Now().UnixMilli()
	p.pressure = sample.PressureHPa
	payload := pressurePayload{Val: p.pressure, Timestamp: p.timestamp}
	cb := p.cb
	p.mu.Unlock()

	if cb != nil {
		cb.Success(payload, true)
	}
}

func (p *BarometerPlugin) fail(code int, message string) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()

	if cb != nil {
		cb.Error(&Error{Code: code, Message: message}, true)
	}
}

var (
	_ Plugin    = (*BarometerPlugin)(nil)
	_ Resetter  = (*BarometerPlugin)(nil)
	_ Destroyer = (*BarometerPlugin)(nil)
)
