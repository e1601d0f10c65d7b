// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"time"

	"github.com/relabs-tech/barometer_bridge/internal/app"
	"github.com/relabs-tech/barometer_bridge/internal/config"
)

func main() {
	configPath := flag.String("config", "./barometer_config.txt", "path to configuration file")
	once := flag.Bool("once", false, "print a single reading and exit")
	frequency := flag.Duration("frequency", time.Second, "watch frequency")
	flag.Parse()

	log.Println("starting barometer console")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(*once, *frequency); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
