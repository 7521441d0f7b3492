package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotRetryable is returned when a manual retry targets a reminder that is
// not in FAILED status.
var ErrNotRetryable = errors.New("reminder is not retryable")

type Service struct {
	reminders ReminderRepository
	logs      LogRepository
	logger    zerolog.Logger
}

func NewService(reminders ReminderRepository, logs LogRepository, logger zerolog.Logger) *Service {
	return &Service{reminders: reminders, logs: logs, logger: logger}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return s.reminders.GetByID(ctx, id)
}

func (s *Service) ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]*Reminder, error) {
	return s.reminders.ListByIntervention(ctx, interventionID)
}

func (s *Service) Logs(ctx context.Context, reminderID uuid.UUID) ([]*NotificationLog, error) {
	if _, err := s.reminders.GetByID(ctx, reminderID); err != nil {
		return nil, err
	}
	return s.logs.ListByReminder(ctx, reminderID)
}

// Retry resets a FAILED reminder back to PENDING so the next sweep tick picks
// it up again. Any other status is rejected.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	rem, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem.Status != StatusFailed {
		return nil, fmt.Errorf("%w: status is %s", ErrNotRetryable, rem.Status)
	}
	ok, err := s.reminders.ResetForRetry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Status changed between the read and the update.
		return nil, ErrNotRetryable
	}
	rem.Status = StatusPending
	rem.LastError = ""
	s.logger.Info().Str("reminder_id", id.String()).Msg("reminder reset for retry")
	return rem, nil
}
