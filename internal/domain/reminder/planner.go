package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carecal/carecal/internal/platform/sender"
)

// InterventionInfo is the slice of intervention state the reminder subsystem
// needs: schedule, liveness, and the fields rendered into messages.
type InterventionInfo struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Title          string
	Location       string
	Priority       string
	ScheduledAt    time.Time
	Active         bool
}

// InterventionSource resolves interventions for the planner and the delivery
// recorder. Implemented by an adapter over the intervention repository.
type InterventionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*InterventionInfo, error)
}

// RuleSpec is a validated rule supplied at intervention creation.
type RuleSpec struct {
	OffsetMinutes int
	Channel       sender.Channel
	Enabled       bool
}

// DefaultRuleSpecs is the rule set applied when the caller supplies none:
// an SMS one day before and an SMS one hour before the visit.
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{OffsetMinutes: -1440, Channel: sender.ChannelSMS, Enabled: true},
		{OffsetMinutes: -60, Channel: sender.ChannelSMS, Enabled: true},
	}
}

// Planner owns the derived reminder set: it expands rules into concrete
// reminder rows and keeps the set consistent across reschedules and
// cancellations.
type Planner struct {
	rules     RuleRepository
	reminders ReminderRepository
	source    InterventionSource
	logger    zerolog.Logger
	now       func() time.Time
}

func NewPlanner(rules RuleRepository, reminders ReminderRepository, source InterventionSource, logger zerolog.Logger) *Planner {
	return &Planner{
		rules:     rules,
		reminders: reminders,
		source:    source,
		logger:    logger,
		now:       time.Now,
	}
}

// Plan persists the given rule specs (or the defaults when none are given)
// and generates the initial reminder set for a freshly created intervention.
func (p *Planner) Plan(ctx context.Context, interventionID uuid.UUID, specs []RuleSpec) error {
	if len(specs) == 0 {
		specs = DefaultRuleSpecs()
	}
	rules := make([]*Rule, 0, len(specs))
	for _, spec := range specs {
		if !spec.Channel.Valid() {
			return fmt.Errorf("%w: %q", sender.ErrUnsupportedChannel, spec.Channel)
		}
		rules = append(rules, &Rule{
			InterventionID: interventionID,
			OffsetMinutes:  spec.OffsetMinutes,
			Channel:        spec.Channel,
			Enabled:        spec.Enabled,
		})
	}

	iv, err := p.source.Get(ctx, interventionID)
	if err != nil {
		return err
	}
	if err := p.rules.CreateBatch(ctx, rules); err != nil {
		return fmt.Errorf("persist rules: %w", err)
	}
	return p.generate(ctx, iv, rules)
}

// OnDateChanged regenerates the entire reminder set against the new schedule.
// Every existing row is removed first, including already-sent ones; their
// notification log entries lose the reference to the deleted parent.
func (p *Planner) OnDateChanged(ctx context.Context, interventionID uuid.UUID) error {
	iv, err := p.source.Get(ctx, interventionID)
	if err != nil {
		return err
	}
	if err := p.reminders.DeleteByIntervention(ctx, interventionID); err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}
	rules, err := p.rules.ListByIntervention(ctx, interventionID)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	return p.generate(ctx, iv, rules)
}

// CancelPending marks every pending future reminder of the intervention as
// CANCELLED. Past-due and already-delivered rows stay untouched. Calling it
// again is a no-op.
func (p *Planner) CancelPending(ctx context.Context, interventionID uuid.UUID) error {
	n, err := p.reminders.CancelPendingFuture(ctx, interventionID, p.now().UTC())
	if err != nil {
		return fmt.Errorf("cancel reminders: %w", err)
	}
	if n > 0 {
		p.logger.Info().
			Str("intervention_id", interventionID.String()).
			Int64("cancelled", n).
			Msg("pending reminders cancelled")
	}
	return nil
}

// generate materializes one reminder per enabled rule whose computed send time
// is still in the future. Rules that already passed never produce a row.
func (p *Planner) generate(ctx context.Context, iv *InterventionInfo, rules []*Rule) error {
	now := p.now().UTC()
	scheduledAt := iv.ScheduledAt.UTC()

	var out []*Reminder
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		planned := scheduledAt.Add(time.Duration(rule.OffsetMinutes) * time.Minute)
		if !planned.After(now) {
			continue
		}
		out = append(out, &Reminder{
			ID:             uuid.New(),
			InterventionID: iv.ID,
			Channel:        rule.Channel,
			PlannedSendUTC: planned,
			Status:         StatusPending,
			IdempotencyKey: IdempotencyKey(iv.ID, planned, rule.Channel),
		})
	}

	if len(out) == 0 {
		p.logger.Debug().
			Str("intervention_id", iv.ID.String()).
			Msg("no future reminders to generate")
		return nil
	}
	if err := p.reminders.CreateBatch(ctx, out); err != nil {
		return fmt.Errorf("persist reminders: %w", err)
	}
	p.logger.Info().
		Str("intervention_id", iv.ID.String()).
		Int("count", len(out)).
		Msg("reminders generated")
	return nil
}
