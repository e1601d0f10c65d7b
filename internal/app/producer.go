// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/env"
	"github.com/relabs-tech/barometer_bridge/internal/sensors"
)

// publisher is the part of mqtt.Client the producer needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// publishSample reads one sample and publishes it as JSON, retained so late
// subscribers start with a value.
func publishSample(pub publisher, topic string, sensor sensors.PressureSensor) (env.Sample, error) {
	sample, err := sensor.Sense()
	if err != nil {
		return env.Sample{}, err
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return env.Sample{}, fmt.Errorf("json marshal: %w", err)
	}

	token := pub.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return env.Sample{}, fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return sample, nil
}

// RunProducer samples the local barometer and publishes every sample to
// TOPIC_PRESSURE so a remote bridge can use SENSOR_SOURCE=mqtt.
func RunProducer() error {
	cfg := config.Get()
	if cfg.SensorSource == config.SourceMQTT {
		return fmt.Errorf("producer needs a local sensor, SENSOR_SOURCE=%s", cfg.SensorSource)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	sensor, err := sensors.Open(cfg)
	if err != nil {
		return err
	}
	defer sensor.Close()

	ticker := time.NewTicker(cfg.SampleInterval())
	defer ticker.Stop()

	published := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("producer: shutting down after %d samples", published)
			return nil
		case <-ticker.C:
			sample, err := publishSample(client, cfg.TopicPressure, sensor)
			if err != nil {
				log.Printf("producer: %v", err)
				continue
			}
			published++
			// log sparingly at UI-rate sampling
			if published%100 == 1 {
				log.Printf("producer: published %.2f hPa to %s (%d so far)", sample.PressureHPa, cfg.TopicPressure, published)
			}
		}
	}
}
