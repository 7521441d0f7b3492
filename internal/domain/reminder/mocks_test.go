package reminder

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carecal/carecal/internal/domain/person"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// -- Mock rule repository --

type mockRuleRepo struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*Rule
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{rules: make(map[uuid.UUID]*Rule)}
}

func (m *mockRuleRepo) CreateBatch(_ context.Context, rules []*Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rules {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = time.Now()
		m.rules[r.ID] = r
	}
	return nil
}

func (m *mockRuleRepo) ListByIntervention(_ context.Context, interventionID uuid.UUID) ([]*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Rule
	for _, r := range m.rules {
		if r.InterventionID == interventionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OffsetMinutes < out[j].OffsetMinutes })
	return out, nil
}

// -- Mock reminder repository --

type mockReminderRepo struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*Reminder
}

func newMockReminderRepo() *mockReminderRepo {
	return &mockReminderRepo{reminders: make(map[uuid.UUID]*Reminder)}
}

func (m *mockReminderRepo) CreateBatch(_ context.Context, reminders []*Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rem := range reminders {
		dup := false
		for _, existing := range m.reminders {
			if existing.IdempotencyKey == rem.IdempotencyKey {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if rem.ID == uuid.Nil {
			rem.ID = uuid.New()
		}
		rem.CreatedAt = time.Now()
		cp := *rem
		m.reminders[rem.ID] = &cp
	}
	return nil
}

func (m *mockReminderRepo) GetByID(_ context.Context, id uuid.UUID) (*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem, ok := m.reminders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rem
	return &cp, nil
}

func (m *mockReminderRepo) ListByIntervention(_ context.Context, interventionID uuid.UUID) ([]*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reminder
	for _, rem := range m.reminders {
		if rem.InterventionID == interventionID {
			cp := *rem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedSendUTC.Before(out[j].PlannedSendUTC) })
	return out, nil
}

func (m *mockReminderRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reminder
	for _, rem := range m.reminders {
		if rem.Status == StatusPending && !rem.PlannedSendUTC.After(now) {
			cp := *rem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedSendUTC.Before(out[j].PlannedSendUTC) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockReminderRepo) DeleteByIntervention(_ context.Context, interventionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rem := range m.reminders {
		if rem.InterventionID == interventionID {
			delete(m.reminders, id)
		}
	}
	return nil
}

func (m *mockReminderRepo) CancelPendingFuture(_ context.Context, interventionID uuid.UUID, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rem := range m.reminders {
		if rem.InterventionID == interventionID && rem.Status == StatusPending && rem.PlannedSendUTC.After(now) {
			rem.Status = StatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *mockReminderRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem, ok := m.reminders[id]
	if !ok {
		return ErrNotFound
	}
	rem.Status = StatusSent
	rem.SentAt = &sentAt
	rem.LastError = ""
	return nil
}

func (m *mockReminderRepo) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem, ok := m.reminders[id]
	if !ok {
		return ErrNotFound
	}
	rem.Status = StatusFailed
	rem.LastError = lastError
	return nil
}

func (m *mockReminderRepo) ResetForRetry(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rem, ok := m.reminders[id]
	if !ok || rem.Status != StatusFailed {
		return false, nil
	}
	rem.Status = StatusPending
	rem.LastError = ""
	return true, nil
}

func (m *mockReminderRepo) byIntervention(interventionID uuid.UUID) []*Reminder {
	out, _ := m.ListByIntervention(context.Background(), interventionID)
	return out
}

// -- Mock log repository --

type mockLogRepo struct {
	mu   sync.Mutex
	logs []*NotificationLog
}

func newMockLogRepo() *mockLogRepo {
	return &mockLogRepo{}
}

func (m *mockLogRepo) Create(_ context.Context, log *NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now()
	cp := *log
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *mockLogRepo) ListByReminder(_ context.Context, reminderID uuid.UUID) ([]*NotificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*NotificationLog
	for _, l := range m.logs {
		if l.ReminderID != nil && *l.ReminderID == reminderID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockLogRepo) all() []*NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*NotificationLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// -- Mock intervention source --

type mockSource struct {
	mu            sync.Mutex
	interventions map[uuid.UUID]*InterventionInfo
}

func newMockSource() *mockSource {
	return &mockSource{interventions: make(map[uuid.UUID]*InterventionInfo)}
}

func (m *mockSource) add(iv *InterventionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interventions[iv.ID] = iv
}

func (m *mockSource) Get(_ context.Context, id uuid.UUID) (*InterventionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interventions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *iv
	return &cp, nil
}

// -- Mock person directory --

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
