package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carecal/carecal/internal/domain/person"
	"github.com/carecal/carecal/internal/platform/dispatch"
	"github.com/carecal/carecal/internal/platform/events"
	"github.com/carecal/carecal/internal/platform/metrics"
	"github.com/carecal/carecal/internal/platform/sender"
)

// ErrInterventionInactive marks a delivery refused because the intervention
// reached a terminal status between enqueue and send.
var ErrInterventionInactive = errors.New("intervention no longer active")

// DeliveryJob is the payload handed from the sweep to the dispatch queue. Its
// idempotency key doubles as the queue's deduplication identifier.
type DeliveryJob struct {
	ReminderID     uuid.UUID
	InterventionID uuid.UUID
	Channel        sender.Channel
	PlannedSendUTC time.Time
	IdempotencyKey string
}

func NewDeliveryJob(rem *Reminder) DeliveryJob {
	return DeliveryJob{
		ReminderID:     rem.ID,
		InterventionID: rem.InterventionID,
		Channel:        rem.Channel,
		PlannedSendUTC: rem.PlannedSendUTC,
		IdempotencyKey: rem.IdempotencyKey,
	}
}

func (j DeliveryJob) Key() string { return j.IdempotencyKey }

// Recorder executes delivery jobs: it re-validates the intervention, renders
// the message, sends it through the channel registry, and records the outcome
// in the notification log and on the reminder row. Every attempt leaves a log
// row; nothing fails silently.
type Recorder struct {
	reminders ReminderRepository
	logs      LogRepository
	source    InterventionSource
	people    person.Directory
	senders   *sender.Registry
	templates *sender.TemplateEngine
	publisher *events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewRecorder(
	reminders ReminderRepository,
	logs LogRepository,
	source InterventionSource,
	people person.Directory,
	senders *sender.Registry,
	templates *sender.TemplateEngine,
	publisher *events.Publisher,
	logger zerolog.Logger,
) *Recorder {
	return &Recorder{
		reminders: reminders,
		logs:      logs,
		source:    source,
		people:    people,
		senders:   senders,
		templates: templates,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Process implements the dispatch queue's job processor.
func (r *Recorder) Process(ctx context.Context, job dispatch.Job) error {
	dj, ok := job.(DeliveryJob)
	if !ok {
		return dispatch.Permanent(fmt.Errorf("unexpected job type %T", job))
	}

	rem, err := r.reminders.GetByID(ctx, dj.ReminderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Deleted by a reschedule while the job was in flight.
			r.logger.Warn().Str("reminder_id", dj.ReminderID.String()).Msg("reminder vanished before delivery")
			return dispatch.Permanent(err)
		}
		return err
	}
	if rem.Status == StatusSent || rem.Status == StatusCancelled {
		r.logger.Debug().
			Str("reminder_id", rem.ID.String()).
			Str("status", rem.Status).
			Msg("reminder already settled, skipping")
		return nil
	}

	iv, err := r.source.Get(ctx, rem.InterventionID)
	if err != nil {
		r.markFailed(ctx, rem, err.Error())
		return dispatch.Permanent(err)
	}
	if !iv.Active {
		// Last-line race guard against a reschedule or cancel landing while
		// the job was in flight.
		r.markFailed(ctx, rem, ErrInterventionInactive.Error())
		return dispatch.Permanent(ErrInterventionInactive)
	}

	patient, err := r.people.GetPatient(ctx, iv.PatientID)
	if err != nil {
		r.markFailed(ctx, rem, err.Error())
		return dispatch.Permanent(err)
	}
	practitioner, err := r.people.GetPractitioner(ctx, iv.PractitionerID)
	if err != nil {
		r.markFailed(ctx, rem, err.Error())
		return dispatch.Permanent(err)
	}

	recipient := recipientFor(rem.Channel, patient)
	subject, body, err := r.templates.Render(sender.TemplateInterventionReminder, map[string]string{
		"patient_name": patient.FullName,
		"doctor_name":  practitioner.FullName,
		"date":         iv.ScheduledAt.UTC().Format("2006-01-02"),
		"time":         iv.ScheduledAt.UTC().Format("15:04"),
		"location":     iv.Location,
		"priority":     iv.Priority,
	})
	if err != nil {
		r.markFailed(ctx, rem, err.Error())
		return dispatch.Permanent(err)
	}
	msg := sender.Message{Recipient: recipient, Subject: subject, Body: body}

	if recipient == "" {
		sendErr := fmt.Errorf("no %s recipient for patient %s", rem.Channel, patient.ID)
		r.recordFailure(ctx, rem, msg, sendErr)
		return dispatch.Permanent(sendErr)
	}

	providerID, sendErr := r.senders.Send(ctx, rem.Channel, msg)
	if sendErr != nil {
		r.recordFailure(ctx, rem, msg, sendErr)
		if errors.Is(sendErr, sender.ErrUnsupportedChannel) {
			return dispatch.Permanent(sendErr)
		}
		return sendErr
	}

	sentAt := r.now().UTC()
	r.writeLog(ctx, rem, msg, LogStatusSent, providerID, "")
	if err := r.reminders.MarkSent(ctx, rem.ID, sentAt); err != nil {
		r.logger.Error().Err(err).Str("reminder_id", rem.ID.String()).Msg("mark sent failed")
	}
	metrics.Deliveries.WithLabelValues(LogStatusSent, string(rem.Channel)).Inc()
	r.publish(ctx, rem, LogStatusSent, providerID, "")
	r.logger.Info().
		Str("reminder_id", rem.ID.String()).
		Str("channel", string(rem.Channel)).
		Str("provider_message_id", providerID).
		Msg("reminder delivered")
	return nil
}

// recordFailure writes the audit row, marks the reminder failed, and emits the
// outcome event.
func (r *Recorder) recordFailure(ctx context.Context, rem *Reminder, msg sender.Message, sendErr error) {
	r.writeLog(ctx, rem, msg, LogStatusFailed, "", sendErr.Error())
	r.markFailed(ctx, rem, sendErr.Error())
	metrics.Deliveries.WithLabelValues(LogStatusFailed, string(rem.Channel)).Inc()
	r.publish(ctx, rem, LogStatusFailed, "", sendErr.Error())
}

func (r *Recorder) markFailed(ctx context.Context, rem *Reminder, reason string) {
	if err := r.reminders.MarkFailed(ctx, rem.ID, reason); err != nil {
		r.logger.Error().Err(err).Str("reminder_id", rem.ID.String()).Msg("mark failed failed")
	}
}

func (r *Recorder) writeLog(ctx context.Context, rem *Reminder, msg sender.Message, status, providerID, errText string) {
	payload, _ := json.Marshal(map[string]string{"subject": msg.Subject, "body": msg.Body})
	id := rem.ID
	entry := &NotificationLog{
		ReminderID:        &id,
		InterventionID:    rem.InterventionID,
		Channel:           rem.Channel,
		Recipient:         msg.Recipient,
		Payload:           string(payload),
		Status:            status,
		ProviderMessageID: providerID,
		Error:             errText,
	}
	if err := r.logs.Create(ctx, entry); err != nil {
		r.logger.Error().Err(err).Str("reminder_id", rem.ID.String()).Msg("notification log write failed")
	}
}

func (r *Recorder) publish(ctx context.Context, rem *Reminder, status, providerID, errText string) {
	err := r.publisher.Publish(ctx, events.Outcome{
		ReminderID:        rem.ID,
		InterventionID:    rem.InterventionID,
		Channel:           string(rem.Channel),
		Status:            status,
		ProviderMessageID: providerID,
		Error:             errText,
		OccurredAt:        r.now().UTC(),
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("reminder_id", rem.ID.String()).Msg("outcome event publish failed")
	}
}

func recipientFor(ch sender.Channel, p *person.Person) string {
	switch ch {
	case sender.ChannelEmail:
		return p.Email
	case sender.ChannelSMS:
		return p.Phone
	case sender.ChannelPush:
		return p.PushToken
	}
	return ""
}
