// Package dispatch provides the in-process notification job queue. Jobs are
// deduplicated by their idempotency key while they are enqueued or in flight,
// retried a bounded number of times, and summarised in a bounded history of
// completed jobs.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carecal/carecal/internal/platform/metrics"
)

// Job is a unit of work identified by a deterministic idempotency key.
// Submitting two jobs with the same key while one is live results in a single
// execution.
type Job interface {
	Key() string
}

// ProcessFunc executes one job. Returning an error triggers the queue's retry
// policy unless the error is marked Permanent.
type ProcessFunc func(ctx context.Context, job Job) error

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable: the queue records the failure and does
// not attempt the job again.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Record summarises one completed job.
type Record struct {
	Key        string    `json:"key"`
	Attempts   int       `json:"attempts"`
	Status     string    `json:"status"` // "succeeded" or "failed"
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

const (
	RecordSucceeded = "succeeded"
	RecordFailed    = "failed"
)

// Options configures a Queue. Zero values fall back to defaults.
type Options struct {
	Workers      int
	MaxRetries   int // automatic retries after the first attempt
	HistoryLimit int // completed records retained, oldest evicted first
	QueueSize    int
	Backoff      func(attempt int) time.Duration
}

// DefaultBackoff returns the delay before retry number attempt (1-indexed).
func DefaultBackoff(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 2 * time.Second
	case 2:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}

// Queue is an in-process job queue with idempotency-key deduplication.
type Queue struct {
	process ProcessFunc
	logger  zerolog.Logger
	opts    Options

	jobs chan Job
	wg   sync.WaitGroup

	mu      sync.Mutex
	live    map[string]struct{}
	history []Record
}

// New creates a Queue. Start must be called before Enqueue has any effect on
// processing.
func New(process ProcessFunc, opts Options, logger zerolog.Logger) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 256
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	return &Queue{
		process: process,
		logger:  logger,
		opts:    opts,
		jobs:    make(chan Job, opts.QueueSize),
		live:    make(map[string]struct{}),
	}
}

// Start launches the worker goroutines. Workers exit when ctx is cancelled;
// Wait blocks until they have drained.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() { q.wg.Wait() }

// Enqueue submits a job. It returns false when a job with the same key is
// already enqueued or in flight, or when the queue is full.
func (q *Queue) Enqueue(job Job) bool {
	key := job.Key()

	q.mu.Lock()
	if _, dup := q.live[key]; dup {
		q.mu.Unlock()
		metrics.DispatchDeduped.Inc()
		q.logger.Debug().Str("key", key).Msg("duplicate job ignored")
		return false
	}
	q.live[key] = struct{}{}
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		metrics.DispatchEnqueued.Inc()
		return true
	default:
		q.mu.Lock()
		delete(q.live, key)
		q.mu.Unlock()
		q.logger.Error().Str("key", key).Msg("dispatch queue full, job dropped")
		return false
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.runJob(ctx, job)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, job Job) {
	key := job.Key()
	var lastErr error
	attempts := 0

	for attempts <= q.opts.MaxRetries {
		attempts++
		lastErr = q.process(ctx, job)
		if lastErr == nil {
			q.finish(key, Record{Key: key, Attempts: attempts, Status: RecordSucceeded, FinishedAt: time.Now().UTC()})
			metrics.DispatchCompleted.WithLabelValues(RecordSucceeded).Inc()
			return
		}
		if IsPermanent(lastErr) {
			q.logger.Warn().Err(lastErr).Str("key", key).Msg("job failed permanently")
			break
		}
		q.logger.Warn().Err(lastErr).Str("key", key).Int("attempt", attempts).Msg("job attempt failed")
		if attempts > q.opts.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			q.finish(key, Record{Key: key, Attempts: attempts, Status: RecordFailed, Error: lastErr.Error(), FinishedAt: time.Now().UTC()})
			metrics.DispatchCompleted.WithLabelValues(RecordFailed).Inc()
			return
		case <-time.After(q.opts.Backoff(attempts)):
		}
	}

	q.finish(key, Record{Key: key, Attempts: attempts, Status: RecordFailed, Error: lastErr.Error(), FinishedAt: time.Now().UTC()})
	metrics.DispatchCompleted.WithLabelValues(RecordFailed).Inc()
}

func (q *Queue) finish(key string, rec Record) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.live, key)
	q.history = append(q.history, rec)
	if len(q.history) > q.opts.HistoryLimit {
		q.history = q.history[len(q.history)-q.opts.HistoryLimit:]
	}
}

// History returns a copy of the retained completed-job records, oldest first.
func (q *Queue) History() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Record, len(q.history))
	copy(out, q.history)
	return out
}

// Pending returns the number of jobs enqueued but not yet picked up.
func (q *Queue) Pending() int { return len(q.jobs) }
