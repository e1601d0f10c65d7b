// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
)

// Sink receives every recorded reading.
type Sink interface {
	Add(ctx context.Context, r barometer.Reading) error
}

// readingKey partitions all readings of one bridge together.
const readingKey = "barometer"

// KafkaSink mirrors readings to a Kafka topic as JSON.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	}}
}

func readingMessage(r barometer.Reading) (kafka.Message, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(readingKey), Value: value, Time: r.Time()}, nil
}

func (sink *KafkaSink) Add(ctx context.Context, r barometer.Reading) error {
	msg, err := readingMessage(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	if err := sink.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", sink.writer.Topic, err)
	}
	return nil
}

func (sink *KafkaSink) Close() error {
	return sink.writer.Close()
}

var (
	_ Sink = (*KafkaSink)(nil)
	_ Sink = Store(nil)
)
