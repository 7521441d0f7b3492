package intervention

import (
	"time"

	"github.com/google/uuid"
)

// Intervention statuses.
const (
	StatusPlanned    = "PLANNED"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusCanceled   = "CANCELED"
)

// Intervention is a scheduled medical visit tied to a patient and a practitioner.
type Intervention struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	Priority       string    `json:"priority"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the intervention can still receive notifications.
func (i *Intervention) Active() bool {
	return i.Status != StatusDone && i.Status != StatusCanceled
}

// RuleSpec describes one reminder rule supplied at creation time.
// A negative offset means "before the scheduled time".
type RuleSpec struct {
	OffsetMinutes int    `json:"offset_minutes"`
	Channel       string `json:"channel"`
	Enabled       bool   `json:"enabled"`
}
