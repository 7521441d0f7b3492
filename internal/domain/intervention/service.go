package intervention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carecal/carecal/internal/domain/person"
)

// ReminderPlanner maintains the reminder set derived from an intervention's
// schedule. Implemented by the reminder subsystem and injected at wiring time.
type ReminderPlanner interface {
	// PlanReminders persists the given rules and generates reminders for a
	// freshly created intervention.
	PlanReminders(ctx context.Context, interventionID uuid.UUID, rules []RuleSpec) error
	// OnDateChanged regenerates the reminder set after a reschedule.
	OnDateChanged(ctx context.Context, interventionID uuid.UUID) error
	// OnStatusChanged cancels pending future reminders when the intervention
	// reaches a terminal status.
	OnStatusChanged(ctx context.Context, interventionID uuid.UUID, newStatus string) error
}

type Service struct {
	repo    Repository
	people  person.Directory
	planner ReminderPlanner
	now     func() time.Time
}

func NewService(repo Repository, people person.Directory, planner ReminderPlanner) *Service {
	return &Service{repo: repo, people: people, planner: planner, now: time.Now}
}

var validStatuses = map[string]bool{
	StatusPlanned:    true,
	StatusInProgress: true,
	StatusDone:       true,
	StatusCanceled:   true,
}

var validPriorities = map[string]bool{
	"low":    true,
	"normal": true,
	"high":   true,
}

func (s *Service) Create(ctx context.Context, iv *Intervention, rules []RuleSpec) error {
	if iv.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if iv.PractitionerID == uuid.Nil {
		return fmt.Errorf("practitioner_id is required")
	}
	if iv.Title == "" {
		return fmt.Errorf("title is required")
	}
	if iv.Status == "" {
		iv.Status = StatusPlanned
	}
	if !validStatuses[iv.Status] {
		return fmt.Errorf("invalid status: %s", iv.Status)
	}
	if iv.Priority == "" {
		iv.Priority = "normal"
	}
	if !validPriorities[iv.Priority] {
		return fmt.Errorf("invalid priority: %s", iv.Priority)
	}
	iv.ScheduledAt = iv.ScheduledAt.UTC()
	if !iv.ScheduledAt.After(s.now().UTC()) {
		return fmt.Errorf("scheduled_at must be in the future")
	}

	if _, err := s.people.GetPatient(ctx, iv.PatientID); err != nil {
		return fmt.Errorf("patient %s: %w", iv.PatientID, err)
	}
	if _, err := s.people.GetPractitioner(ctx, iv.PractitionerID); err != nil {
		return fmt.Errorf("practitioner %s: %w", iv.PractitionerID, err)
	}

	if err := s.repo.Create(ctx, iv); err != nil {
		return err
	}
	return s.planner.PlanReminders(ctx, iv.ID, rules)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Intervention, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Intervention, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Intervention, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// Reschedule moves the intervention to a new time and regenerates its
// reminders against the new schedule.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (*Intervention, error) {
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !iv.Active() {
		return nil, fmt.Errorf("cannot reschedule an intervention with status %s", iv.Status)
	}
	scheduledAt = scheduledAt.UTC()
	if !scheduledAt.After(s.now().UTC()) {
		return nil, fmt.Errorf("scheduled_at must be in the future")
	}
	if err := s.repo.UpdateSchedule(ctx, id, scheduledAt); err != nil {
		return nil, err
	}
	iv.ScheduledAt = scheduledAt
	if err := s.planner.OnDateChanged(ctx, id); err != nil {
		return nil, err
	}
	return iv, nil
}

// ChangeStatus updates the intervention status. Reaching DONE or CANCELED
// cancels every pending future reminder.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, newStatus string) (*Intervention, error) {
	if !validStatuses[newStatus] {
		return nil, fmt.Errorf("invalid status: %s", newStatus)
	}
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
		return nil, err
	}
	iv.Status = newStatus
	if newStatus == StatusDone || newStatus == StatusCanceled {
		if err := s.planner.OnStatusChanged(ctx, id, newStatus); err != nil {
			return nil, err
		}
	}
	return iv, nil
}
