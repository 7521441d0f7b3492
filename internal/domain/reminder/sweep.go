package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carecal/carecal/internal/platform/dispatch"
	"github.com/carecal/carecal/internal/platform/metrics"
)

// Enqueuer accepts delivery jobs. Enqueue reports whether the job was taken;
// false means it was deduplicated or the queue is full, and the reminder stays
// pending for a later tick.
type Enqueuer interface {
	Enqueue(job dispatch.Job) bool
}

// Engine is the periodic sweep that discovers due reminders and hands each
// one to the dispatch queue. It runs once immediately, then on every tick
// until its context is cancelled. A tick never crashes the loop: panics and
// query errors are logged and the next tick proceeds on schedule.
type Engine struct {
	reminders ReminderRepository
	queue     Enqueuer
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	now       func() time.Time
}

func NewEngine(reminders ReminderRepository, queue Enqueuer, interval time.Duration, batchSize int, logger zerolog.Logger) *Engine {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Engine{
		reminders: reminders,
		queue:     queue,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info().
		Dur("interval", e.interval).
		Int("batch_size", e.batchSize).
		Msg("reminder sweep started")

	e.runTick(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("reminder sweep stopped")
			return
		case <-ticker.C:
			e.runTick(ctx)
		}
	}
}

func (e *Engine) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("sweep tick panicked")
		}
	}()
	metrics.SweepTicks.Inc()
	e.sweep(ctx)
}

func (e *Engine) sweep(ctx context.Context) {
	now := e.now().UTC()
	due, err := e.reminders.ListDue(ctx, now, e.batchSize)
	if err != nil {
		e.logger.Error().Err(err).Msg("sweep query failed")
		return
	}
	metrics.SweepDueBatch.Observe(float64(len(due)))
	if len(due) == 0 {
		return
	}

	enqueued := 0
	for _, rem := range due {
		if e.queue.Enqueue(NewDeliveryJob(rem)) {
			enqueued++
		}
	}
	e.logger.Info().
		Int("due", len(due)).
		Int("enqueued", enqueued).
		Msg("sweep tick completed")
}
