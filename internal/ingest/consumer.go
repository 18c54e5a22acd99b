// Package ingest feeds the index from the outside world: a Kafka consumer
// applies incremental content events as they happen, and a PostgreSQL loader
// rebuilds the index in bulk from the platform database.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/indexer"
	"github.com/secid-mx/community-search/pkg/kafka"
	"github.com/secid-mx/community-search/pkg/metrics"
)

// Content event actions accepted on the content-events topic.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// ContentEvent is the wire format of one content mutation published by the
// platform services.
type ContentEvent struct {
	Action   string          `json:"action"`
	Document *index.Document `json:"document,omitempty"`
	Type     string          `json:"type,omitempty"`
	ID       string          `json:"id,omitempty"`
}

// Consumer wraps a Kafka consumer that applies content events to the index.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewConsumer creates a Consumer backed by the given Kafka consumer.
func NewConsumer(kafkaConsumer *kafka.Consumer) *Consumer {
	return &Consumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "ingest-consumer"),
	}
}

// Start begins consuming content events. It blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("ingest consumer starting")
	return c.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that applies each content
// event to idx. Malformed events are logged and skipped so a bad message
// never wedges the partition.
func HandleMessage(idx *indexer.Indexer, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "ingest-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ContentEvent](value)
		if err != nil {
			logger.Error("failed to decode content event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		switch event.Action {
		case ActionUpsert:
			if event.Document == nil {
				logger.Error("upsert event without document", "key", string(key))
				return nil
			}
			replaced, err := idx.UpdateDocument(event.Document)
			if err != nil {
				return fmt.Errorf("indexing %s:%s: %w", event.Document.Type, event.Document.ID, err)
			}
			if m != nil {
				m.DocsIndexedTotal.WithLabelValues(string(event.Document.Type)).Inc()
				m.SnapshotSwapsTotal.Inc()
			}
			logger.Info("document indexed",
				"type", event.Document.Type,
				"id", event.Document.ID,
				"replaced", replaced,
			)
		case ActionDelete:
			ct, err := index.ParseContentType(event.Type)
			if err != nil {
				logger.Error("delete event with unknown type",
					"type", event.Type,
					"key", string(key),
				)
				return nil
			}
			removed, err := idx.RemoveDocument(ct, event.ID)
			if err != nil {
				return fmt.Errorf("removing %s:%s: %w", event.Type, event.ID, err)
			}
			if removed && m != nil {
				m.DocsRemovedTotal.Inc()
				m.SnapshotSwapsTotal.Inc()
			}
			logger.Info("document removed",
				"type", event.Type,
				"id", event.ID,
				"removed", removed,
			)
		default:
			logger.Error("unknown content event action",
				"action", event.Action,
				"key", string(key),
			)
		}
		return nil
	}
}
