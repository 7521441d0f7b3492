package intervention

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const ivCols = `id, patient_id, practitioner_id, title, COALESCE(description, ''),
	COALESCE(location, ''), priority, scheduled_at, status, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, iv *Intervention) error {
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO intervention (
			id, patient_id, practitioner_id, title, description, location,
			priority, scheduled_at, status
		) VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7,$8,$9)`,
		iv.ID, iv.PatientID, iv.PractitionerID, iv.Title, iv.Description, iv.Location,
		iv.Priority, iv.ScheduledAt, iv.Status,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Intervention, error) {
	return scanIntervention(r.pool.QueryRow(ctx, `SELECT `+ivCols+` FROM intervention WHERE id = $1`, id))
}

func (r *repoPG) UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE intervention SET scheduled_at = $2, updated_at = NOW() WHERE id = $1`,
		id, scheduledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE intervention SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Intervention, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM intervention`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+ivCols+` FROM intervention
		ORDER BY scheduled_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectInterventions(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Intervention, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM intervention WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+ivCols+` FROM intervention WHERE patient_id = $1
		ORDER BY scheduled_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectInterventions(rows, total)
}

func scanIntervention(row pgx.Row) (*Intervention, error) {
	var iv Intervention
	err := row.Scan(
		&iv.ID, &iv.PatientID, &iv.PractitionerID, &iv.Title, &iv.Description,
		&iv.Location, &iv.Priority, &iv.ScheduledAt, &iv.Status, &iv.CreatedAt, &iv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	iv.ScheduledAt = iv.ScheduledAt.UTC()
	return &iv, nil
}

func collectInterventions(rows pgx.Rows, total int) ([]*Intervention, int, error) {
	var out []*Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, iv)
	}
	return out, total, rows.Err()
}
