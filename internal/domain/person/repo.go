package person

import (
	"context"

	"github.com/google/uuid"
)

// Directory resolves people referenced by interventions.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Person, error)
	GetPractitioner(ctx context.Context, id uuid.UUID) (*Person, error)
	CreatePatient(ctx context.Context, p *Person) error
	CreatePractitioner(ctx context.Context, p *Person) error
}
