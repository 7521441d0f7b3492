package intervention

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carecal/carecal/internal/domain/person"
)

// -- Mock Repository --

type mockRepo struct {
	interventions map[uuid.UUID]*Intervention
}

func newMockRepo() *mockRepo {
	return &mockRepo{interventions: make(map[uuid.UUID]*Intervention)}
}

func (m *mockRepo) Create(_ context.Context, iv *Intervention) error {
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	iv.CreatedAt = time.Now()
	iv.UpdatedAt = time.Now()
	m.interventions[iv.ID] = iv
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Intervention, error) {
	iv, ok := m.interventions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *iv
	return &cp, nil
}

func (m *mockRepo) UpdateSchedule(_ context.Context, id uuid.UUID, scheduledAt time.Time) error {
	iv, ok := m.interventions[id]
	if !ok {
		return ErrNotFound
	}
	iv.ScheduledAt = scheduledAt
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	iv, ok := m.interventions[id]
	if !ok {
		return ErrNotFound
	}
	iv.Status = status
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Intervention, int, error) {
	var result []*Intervention
	for _, iv := range m.interventions {
		result = append(result, iv)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Intervention, int, error) {
	var result []*Intervention
	for _, iv := range m.interventions {
		if iv.PatientID == patientID {
			result = append(result, iv)
		}
	}
	return result, len(result), nil
}

// -- Mock Directory --

type mockDirectory struct {
	people map[uuid.UUID]*person.Person
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{people: make(map[uuid.UUID]*person.Person)}
}

func (m *mockDirectory) add(p *person.Person) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.people[p.ID] = p
	return p.ID
}

func (m *mockDirectory) GetPatient(_ context.Context, id uuid.UUID) (*person.Person, error) {
	p, ok := m.people[id]
	if !ok {
		return nil, person.ErrNotFound
	}
	return p, nil
}

func (m *mockDirectory) GetPractitioner(_ context.Context, id uuid.UUID) (*person.Person, error) {
	return m.GetPatient(context.Background(), id)
}

func (m *mockDirectory) CreatePatient(_ context.Context, p *person.Person) error {
	m.add(p)
	return nil
}

func (m *mockDirectory) CreatePractitioner(_ context.Context, p *person.Person) error {
	m.add(p)
	return nil
}

// -- Mock Planner --

type plannerCall struct {
	method string
	id     uuid.UUID
	rules  []RuleSpec
	status string
}

type mockPlanner struct {
	calls []plannerCall
}

func (m *mockPlanner) PlanReminders(_ context.Context, id uuid.UUID, rules []RuleSpec) error {
	m.calls = append(m.calls, plannerCall{method: "plan", id: id, rules: rules})
	return nil
}

func (m *mockPlanner) OnDateChanged(_ context.Context, id uuid.UUID) error {
	m.calls = append(m.calls, plannerCall{method: "dateChanged", id: id})
	return nil
}

func (m *mockPlanner) OnStatusChanged(_ context.Context, id uuid.UUID, status string) error {
	m.calls = append(m.calls, plannerCall{method: "statusChanged", id: id, status: status})
	return nil
}

// -- Tests --

func newTestService() (*Service, *mockRepo, *mockDirectory, *mockPlanner) {
	repo := newMockRepo()
	dir := newMockDirectory()
	planner := &mockPlanner{}
	svc := NewService(repo, dir, planner)
	return svc, repo, dir, planner
}

func testIntervention(dir *mockDirectory, scheduledAt time.Time) *Intervention {
	patientID := dir.add(&person.Person{FullName: "Jan Kowalski", Phone: "+48100200300"})
	practitionerID := dir.add(&person.Person{FullName: "Dr Anna Nowak"})
	return &Intervention{
		PatientID:      patientID,
		PractitionerID: practitionerID,
		Title:          "Routine checkup",
		ScheduledAt:    scheduledAt,
	}
}

func TestCreate_DefaultsAndPlan(t *testing.T) {
	svc, repo, dir, planner := newTestService()
	iv := testIntervention(dir, time.Now().Add(48*time.Hour))
	rules := []RuleSpec{{OffsetMinutes: -60, Channel: "SMS", Enabled: true}}

	if err := svc.Create(context.Background(), iv, rules); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if iv.Status != StatusPlanned {
		t.Errorf("expected status %s, got %s", StatusPlanned, iv.Status)
	}
	if iv.Priority != "normal" {
		t.Errorf("expected priority normal, got %s", iv.Priority)
	}
	if _, ok := repo.interventions[iv.ID]; !ok {
		t.Error("intervention not persisted")
	}
	if len(planner.calls) != 1 || planner.calls[0].method != "plan" {
		t.Fatalf("expected one plan call, got %+v", planner.calls)
	}
	if len(planner.calls[0].rules) != 1 {
		t.Errorf("expected rules forwarded to planner, got %+v", planner.calls[0].rules)
	}
}

func TestCreate_RejectsPastSchedule(t *testing.T) {
	svc, _, dir, planner := newTestService()
	iv := testIntervention(dir, time.Now().Add(-time.Hour))

	if err := svc.Create(context.Background(), iv, nil); err == nil {
		t.Fatal("expected error for past scheduled_at")
	}
	if len(planner.calls) != 0 {
		t.Error("planner must not be called when validation fails")
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	svc, _, dir, _ := newTestService()
	iv := testIntervention(dir, time.Now().Add(time.Hour))
	iv.PatientID = uuid.New()

	if err := svc.Create(context.Background(), iv, nil); err == nil {
		t.Fatal("expected error for unknown patient")
	}
}

func TestCreate_InvalidPriority(t *testing.T) {
	svc, _, dir, _ := newTestService()
	iv := testIntervention(dir, time.Now().Add(time.Hour))
	iv.Priority = "urgent"

	if err := svc.Create(context.Background(), iv, nil); err == nil {
		t.Fatal("expected error for invalid priority")
	}
}

func TestReschedule_RegeneratesReminders(t *testing.T) {
	svc, repo, dir, planner := newTestService()
	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := svc.Create(context.Background(), iv, nil); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	newTime := time.Now().Add(72 * time.Hour)
	updated, err := svc.Reschedule(context.Background(), iv.ID, newTime)
	if err != nil {
		t.Fatalf("Reschedule() error: %v", err)
	}
	if !updated.ScheduledAt.Equal(newTime) {
		t.Errorf("unexpected scheduled_at: %v", updated.ScheduledAt)
	}
	if repo.interventions[iv.ID].ScheduledAt.IsZero() {
		t.Error("schedule not persisted")
	}

	last := planner.calls[len(planner.calls)-1]
	if last.method != "dateChanged" || last.id != iv.ID {
		t.Errorf("expected dateChanged call for %s, got %+v", iv.ID, last)
	}
}

func TestReschedule_RejectsTerminalStatus(t *testing.T) {
	svc, _, dir, _ := newTestService()
	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := svc.Create(context.Background(), iv, nil); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), iv.ID, StatusCanceled); err != nil {
		t.Fatalf("ChangeStatus() error: %v", err)
	}

	if _, err := svc.Reschedule(context.Background(), iv.ID, time.Now().Add(48*time.Hour)); err == nil {
		t.Fatal("expected error when rescheduling a canceled intervention")
	}
}

func TestChangeStatus_TerminalCancelsReminders(t *testing.T) {
	svc, _, dir, planner := newTestService()
	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := svc.Create(context.Background(), iv, nil); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := svc.ChangeStatus(context.Background(), iv.ID, StatusDone); err != nil {
		t.Fatalf("ChangeStatus() error: %v", err)
	}

	last := planner.calls[len(planner.calls)-1]
	if last.method != "statusChanged" || last.status != StatusDone {
		t.Errorf("expected statusChanged DONE, got %+v", last)
	}
}

func TestChangeStatus_NonTerminalSkipsPlanner(t *testing.T) {
	svc, _, dir, planner := newTestService()
	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := svc.Create(context.Background(), iv, nil); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	before := len(planner.calls)

	if _, err := svc.ChangeStatus(context.Background(), iv.ID, StatusInProgress); err != nil {
		t.Fatalf("ChangeStatus() error: %v", err)
	}
	if len(planner.calls) != before {
		t.Error("planner must not be called for a non-terminal status")
	}
}

func TestChangeStatus_InvalidStatus(t *testing.T) {
	svc, _, dir, _ := newTestService()
	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := svc.Create(context.Background(), iv, nil); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := svc.ChangeStatus(context.Background(), iv.ID, "ARCHIVED"); err == nil {
		t.Fatal("expected error for invalid status")
	}
}
