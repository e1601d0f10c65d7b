// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
	"github.com/relabs-tech/barometer_bridge/internal/config"
)

func formatReading(r barometer.Reading) string {
	return fmt.Sprintf("[BARO] %8.2f hPa  at %s", r.Value, r.Time().Format("15:04:05.000"))
}

// RunConsole prints readings to stdout. With once set it prints a single
// reading and exits; otherwise it watches at frequency until interrupted.
func RunConsole(once bool, frequency time.Duration) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge, host := newBridge(cfg)
	defer host.Close()
	defer bridge.Close()

	if once {
		return printOnce(ctx, bridge, os.Stdout, cfg.StartTimeout()+time.Second)
	}
	return printWatch(ctx, bridge, os.Stdout, frequency)
}

func printOnce(ctx context.Context, bridge *barometer.Bridge, out io.Writer, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r, err := bridge.CurrentReading(ctx)
	if err != nil {
		return fmt.Errorf("read barometer: %w", err)
	}
	fmt.Fprintln(out, formatReading(r))
	return nil
}

func printWatch(ctx context.Context, bridge *barometer.Bridge, out io.Writer, frequency time.Duration) error {
	sub, err := bridge.Subscribe(ctx, &barometer.Options{Frequency: frequency})
	if err != nil {
		return err
	}
	defer sub.Close()
	log.Printf("console: watching barometer (watch %s)", sub.ID)

	for {
		select {
		case r := <-sub.C:
			fmt.Fprintln(out, formatReading(r))
		case err := <-sub.Err:
			fmt.Fprintf(out, "[BARO] ERROR: %v\n", err)
		case <-sub.Done():
			return nil
		}
	}
}
