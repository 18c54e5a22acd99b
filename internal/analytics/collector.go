// Package analytics records search usage events and ships them to Kafka
// asynchronously, off the query path. A bounded channel decouples producers
// from the Kafka writer; when the buffer is full events are dropped rather
// than delaying a search response.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/secid-mx/community-search/pkg/kafka"
)

// Publisher ships one analytics event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// EventType classifies analytics events.
type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventSuggest    EventType = "suggest"
	EventIndex      EventType = "index_document"
)

// SearchEvent describes one executed search.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Language  string    `json:"language,omitempty"`
	Total     int       `json:"total"`
	Returned  int       `json:"returned"`
	Page      int       `json:"page"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// SuggestEvent describes one autocomplete lookup.
type SuggestEvent struct {
	Type      EventType `json:"type"`
	Prefix    string    `json:"prefix"`
	Returned  int       `json:"returned"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// IndexEvent describes one document mutation applied to the index.
type IndexEvent struct {
	Type        EventType `json:"type"`
	DocumentKey string    `json:"document_key"`
	Action      string    `json:"action"`
	Timestamp   time.Time `json:"timestamp"`
}

// Collector buffers analytics events and publishes them to Kafka in the
// background. Track never blocks and is safe to call concurrently with Close.
type Collector struct {
	producer Publisher
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewCollector creates a Collector writing through producer. bufferSize caps
// the number of in-flight events.
func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the background publish loop. It returns immediately; the
// loop runs until Close is called or ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.producer.Publish(ctx, toKafkaEvent(event)); err != nil {
					c.logger.Error("failed to publish analytics event", "error", err)
				}
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event. If the buffer is full, or the collector is shutting
// down, the event is dropped; search latency is never traded for analytics.
func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to drain.
// Safe to call more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			if err := c.producer.Publish(context.Background(), toKafkaEvent(event)); err != nil {
				c.logger.Error("failed to publish remaining event", "error", err)
			}
		default:
			return
		}
	}
}

// toKafkaEvent keys messages by event type so one event class cannot skew a
// single partition.
func toKafkaEvent(event any) kafka.Event {
	key := "analytics"
	switch e := event.(type) {
	case SearchEvent:
		key = string(e.Type)
	case SuggestEvent:
		key = string(e.Type)
	case IndexEvent:
		key = string(e.Type)
	}
	return kafka.Event{Key: key, Value: event}
}
