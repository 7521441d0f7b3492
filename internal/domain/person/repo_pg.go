package person

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a person does not exist.
var ErrNotFound = errors.New("person not found")

type directoryPG struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) Directory {
	return &directoryPG{pool: pool}
}

func (d *directoryPG) GetPatient(ctx context.Context, id uuid.UUID) (*Person, error) {
	return d.get(ctx, "patient", id)
}

func (d *directoryPG) GetPractitioner(ctx context.Context, id uuid.UUID) (*Person, error) {
	return d.get(ctx, "practitioner", id)
}

func (d *directoryPG) get(ctx context.Context, table string, id uuid.UUID) (*Person, error) {
	query := fmt.Sprintf(`
		SELECT id, full_name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(push_token, '')
		FROM %s WHERE id = $1`, table)

	var p Person
	err := d.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.PushToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	return &p, nil
}

func (d *directoryPG) CreatePatient(ctx context.Context, p *Person) error {
	return d.create(ctx, "patient", p)
}

func (d *directoryPG) CreatePractitioner(ctx context.Context, p *Person) error {
	return d.create(ctx, "practitioner", p)
}

func (d *directoryPG) create(ctx context.Context, table string, p *Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, full_name, email, phone, push_token)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))`, table)

	if _, err := d.pool.Exec(ctx, query, p.ID, p.FullName, p.Email, p.Phone, p.PushToken); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}
