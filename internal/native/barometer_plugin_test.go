// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package native

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/barometer_bridge/internal/env"
)

type fakeSensor struct {
	mu     sync.Mutex
	sample env.Sample
	err    error
	closed bool
}

func (s *fakeSensor) Sense() (env.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, s.err
}

func (s *fakeSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSensor) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSensor) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type pluginHarness struct {
	host  *Host
	wins  chan json.RawMessage
	fails chan error
}

func newHarness(p *BarometerPlugin) *pluginHarness {
	h := &pluginHarness{
		host:  NewHost(),
		wins:  make(chan json.RawMessage, 64),
		fails: make(chan error, 64),
	}
	h.host.Register(BarometerService, p)
	return h
}

func (h *pluginHarness) exec(action string) {
	h.host.Exec(BarometerService, action, nil, func(p json.RawMessage) {
		select {
		case h.wins <- p:
		default:
		}
	}, func(err error) {
		select {
		case h.fails <- err:
		default:
		}
	})
}

func waitStatus(t *testing.T, p *BarometerPlugin, want BarometerStatus) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected status %d, got %d", want, p.Status())
}

func TestBarometerPluginNoSensorReportsError(t *testing.T) {
	p := NewBarometerPlugin(func() (Sensor, error) {
		return nil, errors.New("no device")
	}, BarometerOptions{Clock: clock.NewMock()})
	h := newHarness(p)

	h.exec("start")

	select {
	case err := <-h.fails:
		var nerr *Error
		if !errors.As(err, &nerr) || nerr.Code != ErrCodeFailedToStart || nerr.Message != msgNoSensor {
			t.Fatalf("expected no-sensor error, got %v", err)
		}
	default:
		t.Fatalf("expected synchronous failure")
	}
	if p.Status() != StatusFailedToStart {
		t.Fatalf("expected failed-to-start, got %d", p.Status())
	}
}

func TestBarometerPluginStreamsSamples(t *testing.T) {
	mock := clock.NewMock()
	sensor := &fakeSensor{sample: env.NewSample("fake", 101325, 20, env.AccuracyHigh, time.Time{})}
	p := NewBarometerPlugin(func() (Sensor, error) { return sensor, nil }, BarometerOptions{Clock: mock})
	h := newHarness(p)

	h.exec("start")
	if p.Status() != StatusStarting {
		t.Fatalf("expected starting, got %d", p.Status())
	}

	mock.Add(DefaultSampleInterval)

	select {
	case raw := <-h.wins:
		var got pressurePayload
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if got.Val != 1013.25 {
			t.Fatalf("expected 1013.25, got %v", got.Val)
		}
		if got.Timestamp != mock.Now().UnixMilli() {
			t.Fatalf("expected timestamp %d, got %d", mock.Now().UnixMilli(), got.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sample")
	}

	if p.Status() != StatusRunning {
		t.Fatalf("expected running, got %d", p.Status())
	}
}

func TestBarometerPluginStartWhileRunningKeepsSensor(t *testing.T) {
	mock := clock.NewMock()
	opens := 0
	sensor := &fakeSensor{sample: env.NewSample("fake", 100000, 20, env.AccuracyHigh, time.Time{})}
	p := NewBarometerPlugin(func() (Sensor, error) {
		opens++
		return sensor, nil
	}, BarometerOptions{Clock: mock})
	h := newHarness(p)

	h.exec("start")
	mock.Add(DefaultSampleInterval)
	waitStatus(t, p, StatusRunning)

	h.exec("start")
	if opens != 1 {
		t.Fatalf("expected sensor opened once, got %d", opens)
	}
}

func TestBarometerPluginDropsLowAccuracySamples(t *testing.T) {
	mock := clock.NewMock()
	sensor := &fakeSensor{sample: env.NewSample("fake", 100000, 20, env.AccuracyLow, time.Time{})}
	p := NewBarometerPlugin(func() (Sensor, error) { return sensor, nil }, BarometerOptions{Clock: mock})
	h := newHarness(p)

	h.exec("start")
	mock.Add(DefaultSampleInterval)
	waitStatus(t, p, StatusRunning)

	// A running listener must not time out even without accepted samples.
	mock.Add(DefaultStartTimeout)

	select {
	case raw := <-h.wins:
		t.Fatalf("unexpected sample %s", raw)
	case err := <-h.fails:
		t.Fatalf("unexpected failure %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBarometerPluginStartTimeout(t *testing.T) {
	mock := clock.NewMock()
	sensor := &fakeSensor{err: errors.New("bus busy")}
	p := NewBarometerPlugin(func() (Sensor, error) { return sensor, nil }, BarometerOptions{Clock: mock})
	h := newHarness(p)

	h.exec("start")
	mock.Add(DefaultStartTimeout)

	select {
	case err := <-h.fails:
		var nerr *Error
		if !errors.As(err, &nerr) || nerr.Code != ErrCodeFailedToStart || nerr.Message != msgStartTimedOut {
			t.Fatalf("expected start timeout error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for start failure")
	}
	if p.Status() != StatusFailedToStart {
		t.Fatalf("expected failed-to-start, got %d", p.Status())
	}
}

func TestBarometerPluginStopAfterTimeoutClosesSensor(t *testing.T) {
	mock := clock.NewMock()
	sensor := &fakeSensor{
		sample: env.NewSample("fake", 101300, 20, env.AccuracyHigh, time.Time{}),
		err:    errors.New("bus busy"),
	}
	p := NewBarometerPlugin(func() (Sensor, error) { return sensor, nil }, BarometerOptions{Clock: mock})
	h := newHarness(p)

	h.exec("start")
	mock.Add(DefaultStartTimeout)
	select {
	case <-h.fails:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for start failure")
	}
	waitStatus(t, p, StatusFailedToStart)

	h.exec("stop")
	if p.Status() != StatusStopped {
		t.Fatalf("expected stopped, got %d", p.Status())
	}
	if !sensor.isClosed() {
		t.Fatalf("expected sensor closed")
	}

	// the sensor recovers but nothing may be delivered anymore
	sensor.setErr(nil)
	mock.Add(5 * DefaultSampleInterval)

	select {
	case raw := <-h.wins:
		t.Fatalf("unexpected sample after stop %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
	if p.Status() != StatusStopped {
		t.Fatalf("expected still stopped, got %d", p.Status())
	}
}

func TestBarometerPluginStopClosesSensor(t *testing.T) {
	mock := clock.NewMock()
	sensor := &fakeSensor{sample: env.NewSample("fake", 100000, 20, env.AccuracyMedium, time.Time{})}
	p := NewBarometerPlugin(func() (Sensor, error) { return sensor, nil }, BarometerOptions{Clock: mock})
	h := newHarness(p)

	h.exec("start")
	mock.Add(DefaultSampleInterval)
	waitStatus(t, p, StatusRunning)

	h.exec("stop")

	if p.Status() != StatusStopped {
		t.Fatalf("expected stopped, got %d", p.Status())
	}
	if !sensor.isClosed() {
		t.Fatalf("expected sensor closed")
	}
}

func TestBarometerPluginResetOnlyStopsRunningListener(t *testing.T) {
	mock := clock.NewMock()
	sensor := &fakeSensor{sample: env.NewSample("fake", 100000, 20, env.AccuracyHigh, time.Time{})}
	p := NewBarometerPlugin(func() (Sensor, error) { return sensor, nil }, BarometerOptions{Clock: mock})
	h := newHarness(p)

	p.Reset()
	if sensor.isClosed() {
		t.Fatalf("reset of a stopped plugin must not touch the sensor")
	}

	h.exec("start")
	mock.Add(DefaultSampleInterval)
	waitStatus(t, p, StatusRunning)

	h.host.Reset()
	if p.Status() != StatusStopped || !sensor.isClosed() {
		t.Fatalf("expected reset to stop the running listener")
	}
}
