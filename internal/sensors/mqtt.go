// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/env"
)

const mqttStaleAt = 30 * time.Second

// MQTT follows a remote barometer publishing env.Sample JSON.
type MQTT struct {
	client mqtt.Client
	topic  string
	now    func() time.Time

	mu     sync.Mutex
	last   env.Sample
	have   bool
	closed bool
}

// OpenMQTT connects to broker and subscribes to topic.
func OpenMQTT(broker, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("sensors: connected to MQTT broker at %s", broker)

	m := &MQTT{client: client, topic: topic, now: time.Now}

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		m.handle(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
	}
	log.Printf("sensors: subscribed to MQTT topic %s", topic)

	return m, nil
}

func (m *MQTT) handle(payload []byte) {
	var s env.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		log.Printf("sensors: MQTT payload unmarshal error: %v", err)
		return
	}
	if s.PressureHPa == 0 && s.Pressure > 0 {
		s.PressureHPa = s.Pressure / 100.0
	}
	if s.Time.IsZero() {
		s.Time = m.now()
	}
	s.Source = config.SourceMQTT

	m.mu.Lock()
	m.last, m.have = s, true
	m.mu.Unlock()
}

// Sense returns the last received sample, downgraded to low accuracy once it
// is older than thirty seconds.
func (m *MQTT) Sense() (env.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return env.Sample{}, ErrClosed
	}
	if !m.have {
		return env.Sample{}, ErrNoSample
	}

	s := m.last
	if m.now().Sub(s.Time) > mqttStaleAt && s.Accuracy > env.AccuracyLow {
		s.Accuracy = env.AccuracyLow
	}
	return s, nil
}

func (m *MQTT) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.client != nil {
		m.client.Unsubscribe(m.topic).Wait()
		m.client.Disconnect(250)
	}
	return nil
}
