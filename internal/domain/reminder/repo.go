package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reminder referenced by id does not exist.
var ErrNotFound = errors.New("reminder not found")

type RuleRepository interface {
	CreateBatch(ctx context.Context, rules []*Rule) error
	ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]*Rule, error)
}

type ReminderRepository interface {
	// CreateBatch inserts reminders, silently skipping rows whose idempotency
	// key already exists.
	CreateBatch(ctx context.Context, reminders []*Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
	ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]*Reminder, error)
	// ListDue returns pending reminders whose planned send time has passed,
	// oldest first, bounded by limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Reminder, error)
	// DeleteByIntervention removes every reminder row for the intervention
	// regardless of status.
	DeleteByIntervention(ctx context.Context, interventionID uuid.UUID) error
	// CancelPendingFuture marks pending reminders scheduled after now as
	// CANCELLED and returns how many rows changed.
	CancelPendingFuture(ctx context.Context, interventionID uuid.UUID, now time.Time) (int64, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	// ResetForRetry flips a FAILED reminder back to PENDING, clearing its last
	// error. Returns false when the reminder was not in FAILED status.
	ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error)
}

type LogRepository interface {
	Create(ctx context.Context, log *NotificationLog) error
	ListByReminder(ctx context.Context, reminderID uuid.UUID) ([]*NotificationLog, error)
}
