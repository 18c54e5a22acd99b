// Package kafka wraps segmentio/kafka-go for the platform's two topics:
// content events feeding the index and query analytics flowing out of it.
// Values travel as JSON; message keys drive partition hashing.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/secid-mx/community-search/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Event is one message to publish: Key selects the partition, Value is
// marshalled to JSON.
type Event struct {
	Key   string
	Value any
}

// Producer writes events to a single topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewProducer builds a synchronous producer for topic. Writes are batched for
// up to 10ms and require acknowledgement from all in-sync replicas.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  3,
			RequiredAcks: kafka.RequireAll,
		},
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish marshals event.Value and writes it, blocking until the broker
// acknowledges or ctx expires.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := p.encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed", "key", event.Key, "error", err)
		return fmt.Errorf("writing to %s: %w", p.topic, err)
	}
	return nil
}

// PublishBatch writes events in one broker round trip. Either the whole batch
// is handed to the writer or none of it is.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := p.encode(event)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("batch publish failed", "count", len(msgs), "error", err)
		return fmt.Errorf("writing batch to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %q: %w", event.Key, err)
	}
	return kafka.Message{Key: []byte(event.Key), Value: value}, nil
}

// Close flushes buffered messages and releases the writer's connections.
func (p *Producer) Close() error {
	return p.writer.Close()
}
