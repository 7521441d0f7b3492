// Package events publishes delivery outcome events to Kafka so downstream
// consumers (audit pipelines, analytics) can follow reminder deliveries
// without polling the store. Publishing is best-effort: failures are logged
// and never affect delivery bookkeeping.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Outcome is the event emitted after every recorded delivery attempt.
type Outcome struct {
	ReminderID        uuid.UUID `json:"reminder_id"`
	InterventionID    uuid.UUID `json:"intervention_id"`
	Channel           string    `json:"channel"`
	Status            string    `json:"status"` // SENT or FAILED
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Publisher writes outcome events to a Kafka topic. A nil Publisher is a
// valid no-op, used when KAFKA_BROKERS is not configured.
type Publisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewPublisher creates a Publisher for the given brokers and topic. Returns
// nil when brokers is empty so callers can treat the publisher as disabled.
func NewPublisher(brokers []string, topic string, logger zerolog.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one outcome event, keyed by reminder id so outcomes for the
// same reminder stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, o Outcome) error {
	if p == nil {
		return nil
	}
	value, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(o.ReminderID.String()),
		Value: value,
		Time:  o.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write outcome event: %w", err)
	}
	p.logger.Debug().
		Str("reminder_id", o.ReminderID.String()).
		Str("status", o.Status).
		Msg("outcome event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
