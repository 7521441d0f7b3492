package reminder

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/carecal/carecal/internal/platform/sender"
)

// Reminder statuses. StatusPending is the single value both the planner writes
// and the sweep query filters on; the two sides must never diverge.
const (
	StatusPending   = "PENDING"
	StatusSent      = "SENT"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// NotificationLog statuses.
const (
	LogStatusSent   = "SENT"
	LogStatusFailed = "FAILED"
)

// Rule is a persisted reminder rule: notify via Channel, OffsetMinutes
// relative to the intervention's scheduled time (negative = before).
type Rule struct {
	ID             uuid.UUID      `json:"id"`
	InterventionID uuid.UUID      `json:"intervention_id"`
	OffsetMinutes  int            `json:"offset_minutes"`
	Channel        sender.Channel `json:"channel"`
	Enabled        bool           `json:"enabled"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Reminder is one concrete, time-stamped notification instance derived from a
// rule. Rows are derived state: they are regenerated on reschedule and only
// mutated directly through delivery bookkeeping and manual retry.
type Reminder struct {
	ID             uuid.UUID      `json:"id"`
	InterventionID uuid.UUID      `json:"intervention_id"`
	Channel        sender.Channel `json:"channel"`
	PlannedSendUTC time.Time      `json:"planned_send_utc"`
	Status         string         `json:"status"`
	IdempotencyKey string         `json:"idempotency_key"`
	LastError      string         `json:"last_error,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NotificationLog is the append-only audit record of one delivery attempt.
// ReminderID is nil when the parent reminder was deleted by a reschedule.
type NotificationLog struct {
	ID                uuid.UUID      `json:"id"`
	ReminderID        *uuid.UUID     `json:"reminder_id,omitempty"`
	InterventionID    uuid.UUID      `json:"intervention_id"`
	Channel           sender.Channel `json:"channel"`
	Recipient         string         `json:"recipient"`
	Payload           string         `json:"payload"`
	Status            string         `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// IdempotencyKey derives the deduplication key for a reminder. It is a pure
// function of (intervention, planned send time, channel): two generation runs
// over the same inputs always produce the same key.
func IdempotencyKey(interventionID uuid.UUID, plannedSend time.Time, ch sender.Channel) string {
	h := sha256.Sum256([]byte(interventionID.String() + "|" + plannedSend.UTC().Format(time.RFC3339) + "|" + string(ch)))
	return hex.EncodeToString(h[:])[:32]
}
