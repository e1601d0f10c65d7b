// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes bridge and HTTP counters in Prometheus format.
package metrics

import (
	"bufio"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
)

// BridgeStats is the read-only view of a bridge sampled on every scrape.
type BridgeStats interface {
	Running() bool
	Subscribers() int
	Watches() int
	Last() (barometer.Reading, bool)
}

type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	readingsRecorded  prometheus.Counter
	recordErrors      prometheus.Counter
}

// New builds a registry of its own so several instances can coexist in tests.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		readingsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barometer_readings_recorded_total",
			Help: "Total readings written to the history sinks.",
		}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barometer_record_errors_total",
			Help: "Total failed writes to a history sink.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.readingsRecorded,
		m.recordErrors,
	)
	return m
}

// ObserveBridge registers gauges that read b at scrape time.
func (m *Metrics) ObserveBridge(b BridgeStats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "barometer_native_running",
			Help: "1 while the native barometer is started.",
		}, func() float64 {
			if b.Running() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "barometer_subscribers",
			Help: "Registered callback pairs, one-shots and watches.",
		}, func() float64 { return float64(b.Subscribers()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "barometer_watches",
			Help: "Active watches.",
		}, func() float64 { return float64(b.Watches()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "barometer_pressure_hpa",
			Help: "Most recent pressure reading in hPa, NaN before the first.",
		}, func() float64 {
			r, ok := b.Last()
			if !ok {
				return math.NaN()
			}
			return r.Value
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "barometer_reading_timestamp_seconds",
			Help: "Unix time of the most recent reading.",
		}, func() float64 {
			r, ok := b.Last()
			if !ok {
				return 0
			}
			return float64(r.Timestamp) / 1000
		}),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer cannot hijack")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReadingRecorded() {
	if m == nil {
		return
	}
	m.readingsRecorded.Inc()
}

func (m *Metrics) RecordError() {
	if m == nil {
		return
	}
	m.recordErrors.Inc()
}
