// Package publisher emits audit events to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"bonifica/internal/audit"
)

// Kafka publishes audit events to the configured topic. Events are keyed by
// entity id so one entity's trail stays ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the publisher.
type Option func(*Kafka)

// WithLogger sets a logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Kafka) {
		p.logger = logger
	}
}

// New constructs a Kafka audit publisher.
func New(client *kgo.Client, topic string, opts ...Option) *Kafka {
	p := &Kafka{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit publishes one audit event synchronously. The caller decides whether a
// failure aborts the operation; this engine treats the trail as fail-open.
func (p *Kafka) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.EntityID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit publish failed",
				"action", event.Action,
				"entity_id", event.EntityID,
				"error", err,
			)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Noop discards events; used when Kafka is not configured.
type Noop struct{}

// Emit implements audit.Publisher.
func (Noop) Emit(context.Context, audit.Event) error { return nil }
