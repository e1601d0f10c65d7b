// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/history"
	"github.com/relabs-tech/barometer_bridge/internal/metrics"
)

const recordAddTimeout = 2 * time.Second

// recorder keeps a watch on the bridge and appends every new reading to its
// sinks.
type recorder struct {
	watch   *rewatch
	sinks   []history.Sink
	metrics *metrics.Metrics

	tsMu   sync.Mutex
	lastTS int64
}

func newRecorder(bridge *barometer.Bridge, every time.Duration, clk clock.Clock, m *metrics.Metrics, sinks ...history.Sink) *recorder {
	r := &recorder{sinks: sinks, metrics: m}
	r.watch = newRewatch("recorder", bridge, every, clk, r.onReading, nil)
	return r
}

func (r *recorder) start() error { return r.watch.start() }

func (r *recorder) stop() { r.watch.stop() }

// onReading skips re-deliveries of a reading that was already stored.
func (r *recorder) onReading(reading barometer.Reading) {
	r.tsMu.Lock()
	if reading.Timestamp == r.lastTS {
		r.tsMu.Unlock()
		return
	}
	r.lastTS = reading.Timestamp
	r.tsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), recordAddTimeout)
	defer cancel()
	for _, sink := range r.sinks {
		if err := sink.Add(ctx, reading); err != nil {
			log.Printf("recorder: %T error: %v", sink, err)
			r.metrics.RecordError()
			continue
		}
		r.metrics.ReadingRecorded()
	}
}

// RunRecorder logs readings into the configured store until interrupted.
func RunRecorder() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancelSetup := context.WithTimeout(ctx, 10*time.Second)
	store, err := openStore(setupCtx, cfg)
	cancelSetup()
	if err != nil {
		return err
	}
	defer store.Close()

	bridge, host := newBridge(cfg)
	defer host.Close()
	defer bridge.Close()

	sinks, closeSinks := recordSinks(cfg, store)
	defer closeSinks()

	rec := newRecorder(bridge, cfg.WatchInterval(), nil, nil, sinks...)
	if err := rec.start(); err != nil {
		return err
	}
	defer rec.stop()

	log.Printf("recorder: recording every %s", cfg.WatchInterval())
	<-ctx.Done()

	if count, err := store.Count(context.Background()); err == nil {
		log.Printf("recorder: shutting down, %s readings in history", humanize.Comma(int64(count)))
	} else {
		log.Println("recorder: shutting down")
	}
	return nil
}

// recordSinks returns the store plus a Kafka mirror when brokers are set.
func recordSinks(cfg *config.Config, store history.Store) ([]history.Sink, func()) {
	sinks := []history.Sink{store}
	if len(cfg.KafkaBrokers) == 0 {
		return sinks, func() {}
	}

	kafkaSink := history.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	log.Printf("recorder: mirroring readings to Kafka topic %s", cfg.KafkaTopic)
	return append(sinks, kafkaSink), func() {
		if err := kafkaSink.Close(); err != nil {
			log.Printf("recorder: kafka close error: %v", err)
		}
	}
}
