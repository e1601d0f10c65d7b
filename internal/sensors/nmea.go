// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/env"
)

const (
	hPaPerBar   = 1000.0
	hPaPerInHg  = 33.8639
	nmeaStaleAt = 10 * time.Second
)

// NMEA keeps the latest pressure from a weather station emitting MDA
// (meteorological composite) sentences.
type NMEA struct {
	port io.ReadCloser
	now  func() time.Time

	mu     sync.Mutex
	last   env.Sample
	have   bool
	closed bool
	err    error
	done   chan struct{}
}

// OpenNMEA opens the serial port and starts reading sentences.
func OpenNMEA(portName string, baud int) (*NMEA, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("NMEA serial open %s: %w", portName, err)
	}
	log.Printf("sensors: NMEA serial port opened on %s at %d baud", portName, baud)

	return newNMEA(port, time.Now), nil
}

func newNMEA(port io.ReadCloser, now func() time.Time) *NMEA {
	n := &NMEA{port: port, now: now, done: make(chan struct{})}
	go n.read()
	return n
}

func (n *NMEA) read() {
	defer close(n.done)

	reader := bufio.NewReader(n.port)
	for {
		line, err := reader.ReadString('\n')
		if s, ok := parseMDA(line, n.now()); ok {
			n.mu.Lock()
			n.last, n.have = s, true
			n.mu.Unlock()
		}
		if err != nil {
			n.mu.Lock()
			if !n.closed {
				log.Printf("sensors: NMEA read error: %v", err)
				n.err = err
			}
			n.mu.Unlock()
			return
		}
	}
}

// parseMDA extracts pressure and air temperature from one NMEA line.
func parseMDA(line string, now time.Time) (env.Sample, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return env.Sample{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// partial sentences are common right after opening the port
		return env.Sample{}, false
	}
	if sentence.DataType() != nmea.TypeMDA {
		return env.Sample{}, false
	}
	m := sentence.(nmea.MDA)

	hpa := m.PressureBar * hPaPerBar
	if hpa <= 0 {
		hpa = m.PressureInch * hPaPerInHg
	}
	if hpa <= 0 {
		return env.Sample{}, false
	}
	return env.NewSample(config.SourceNMEA, hpa*100, m.AirTemp, env.AccuracyHigh, now), true
}

// Sense returns the latest MDA sample. Samples older than ten seconds are
// reported with low accuracy.
func (n *NMEA) Sense() (env.Sample, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return env.Sample{}, ErrClosed
	}
	if n.err != nil {
		return env.Sample{}, fmt.Errorf("NMEA read: %w", n.err)
	}
	if !n.have {
		return env.Sample{}, ErrNoSample
	}

	s := n.last
	if n.now().Sub(s.Time) > nmeaStaleAt {
		s.Accuracy = env.AccuracyLow
	}
	return s, nil
}

func (n *NMEA) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	err := n.port.Close()
	<-n.done
	return err
}
