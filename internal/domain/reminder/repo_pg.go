package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ruleRepoPG struct {
	pool *pgxpool.Pool
}

func NewRuleRepo(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepoPG{pool: pool}
}

func (r *ruleRepoPG) CreateBatch(ctx context.Context, rules []*Rule) error {
	for _, rule := range rules {
		if rule.ID == uuid.Nil {
			rule.ID = uuid.New()
		}
		_, err := r.pool.Exec(ctx, `
			INSERT INTO reminder_rule (id, intervention_id, offset_minutes, channel, enabled)
			VALUES ($1,$2,$3,$4,$5)`,
			rule.ID, rule.InterventionID, rule.OffsetMinutes, rule.Channel, rule.Enabled,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ruleRepoPG) ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]*Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, intervention_id, offset_minutes, channel, enabled, created_at
		FROM reminder_rule
		WHERE intervention_id = $1
		ORDER BY offset_minutes ASC`, interventionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.InterventionID, &rule.OffsetMinutes, &rule.Channel, &rule.Enabled, &rule.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}

type reminderRepoPG struct {
	pool *pgxpool.Pool
}

func NewReminderRepo(pool *pgxpool.Pool) ReminderRepository {
	return &reminderRepoPG{pool: pool}
}

const remCols = `id, intervention_id, channel, planned_send_utc, status,
	idempotency_key, COALESCE(last_error, ''), sent_at, created_at`

func (r *reminderRepoPG) CreateBatch(ctx context.Context, reminders []*Reminder) error {
	for _, rem := range reminders {
		if rem.ID == uuid.Nil {
			rem.ID = uuid.New()
		}
		_, err := r.pool.Exec(ctx, `
			INSERT INTO reminder (id, intervention_id, channel, planned_send_utc, status, idempotency_key)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (idempotency_key) DO NOTHING`,
			rem.ID, rem.InterventionID, rem.Channel, rem.PlannedSendUTC, rem.Status, rem.IdempotencyKey,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *reminderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return scanReminder(r.pool.QueryRow(ctx, `SELECT `+remCols+` FROM reminder WHERE id = $1`, id))
}

func (r *reminderRepoPG) ListByIntervention(ctx context.Context, interventionID uuid.UUID) ([]*Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+remCols+` FROM reminder
		WHERE intervention_id = $1
		ORDER BY planned_send_utc ASC`, interventionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *reminderRepoPG) ListDue(ctx context.Context, now time.Time, limit int) ([]*Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+remCols+` FROM reminder
		WHERE status = $1 AND planned_send_utc <= $2
		ORDER BY planned_send_utc ASC
		LIMIT $3`, StatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *reminderRepoPG) DeleteByIntervention(ctx context.Context, interventionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM reminder WHERE intervention_id = $1`, interventionID)
	return err
}

func (r *reminderRepoPG) CancelPendingFuture(ctx context.Context, interventionID uuid.UUID, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder SET status = $1
		WHERE intervention_id = $2 AND status = $3 AND planned_send_utc > $4`,
		StatusCancelled, interventionID, StatusPending, now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *reminderRepoPG) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder SET status = $1, sent_at = $2, last_error = NULL WHERE id = $3`,
		StatusSent, sentAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reminderRepoPG) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder SET status = $1, last_error = $2 WHERE id = $3`,
		StatusFailed, lastError, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reminderRepoPG) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder SET status = $1, last_error = NULL
		WHERE id = $2 AND status = $3`,
		StatusPending, id, StatusFailed,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(
		&rem.ID, &rem.InterventionID, &rem.Channel, &rem.PlannedSendUTC, &rem.Status,
		&rem.IdempotencyKey, &rem.LastError, &rem.SentAt, &rem.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rem.PlannedSendUTC = rem.PlannedSendUTC.UTC()
	return &rem, nil
}

func collectReminders(rows pgx.Rows) ([]*Reminder, error) {
	var out []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

type logRepoPG struct {
	pool *pgxpool.Pool
}

func NewLogRepo(pool *pgxpool.Pool) LogRepository {
	return &logRepoPG{pool: pool}
}

func (r *logRepoPG) Create(ctx context.Context, log *NotificationLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_log (
			id, reminder_id, intervention_id, channel, recipient, payload,
			status, provider_message_id, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''))`,
		log.ID, log.ReminderID, log.InterventionID, log.Channel, log.Recipient, log.Payload,
		log.Status, log.ProviderMessageID, log.Error,
	)
	return err
}

func (r *logRepoPG) ListByReminder(ctx context.Context, reminderID uuid.UUID) ([]*NotificationLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reminder_id, intervention_id, channel, recipient, payload,
			status, COALESCE(provider_message_id, ''), COALESCE(error, ''), created_at
		FROM notification_log
		WHERE reminder_id = $1
		ORDER BY created_at ASC`, reminderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*NotificationLog
	for rows.Next() {
		var l NotificationLog
		if err := rows.Scan(&l.ID, &l.ReminderID, &l.InterventionID, &l.Channel, &l.Recipient, &l.Payload,
			&l.Status, &l.ProviderMessageID, &l.Error, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
