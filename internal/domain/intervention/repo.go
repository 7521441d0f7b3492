package intervention

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an intervention does not exist.
var ErrNotFound = errors.New("intervention not found")

type Repository interface {
	Create(ctx context.Context, iv *Intervention) error
	GetByID(ctx context.Context, id uuid.UUID) (*Intervention, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, limit, offset int) ([]*Intervention, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Intervention, int, error)
}
