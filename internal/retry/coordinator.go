// Package retry decides whether a failed job gets another attempt and
// schedules the re-execution after an exponential backoff delay.
package retry

import (
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/nkoval/videofetch/internal/errors"
)

const defaultMultiplier = 2.0

// Coordinator tracks per-job attempt counters and pending backoff timers.
// The orchestrator never decides retry policy itself; it forwards normalized
// errors here and acts on the answer.
type Coordinator struct {
	mu         sync.Mutex
	maxRetries int
	initial    time.Duration
	maxDelay   time.Duration
	records    map[string]*record
	timers     map[string]*time.Timer
	stopped    bool
	logger     *slog.Logger
}

type record struct {
	attempts  int
	lastKind  apperrors.Kind
	scheduled bool
}

// New creates a Coordinator. maxRetries bounds automatic re-executions per
// job; initial and maxDelay shape the backoff curve.
func New(maxRetries int, initial, maxDelay time.Duration, logger *slog.Logger) *Coordinator {
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &Coordinator{
		maxRetries: maxRetries,
		initial:    initial,
		maxDelay:   maxDelay,
		records:    make(map[string]*record),
		timers:     make(map[string]*time.Timer),
		logger:     logger,
	}
}

// ShouldRetry reports whether the job deserves another automatic attempt:
// the error kind must be retryable and the attempt budget not yet spent.
func (c *Coordinator) ShouldRetry(jobID string, err error) bool {
	if !apperrors.Retryable(err) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}
	if rec, ok := c.records[jobID]; ok && rec.attempts >= c.maxRetries {
		return false
	}
	return true
}

// ScheduleRetry increments the job's attempt counter and arranges for resume
// to run after the backoff delay. It returns the attempt number just
// consumed. Call only after ShouldRetry returned true.
func (c *Coordinator) ScheduleRetry(jobID string, err error, resume func()) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[jobID]
	if !ok {
		rec = &record{}
		c.records[jobID] = rec
	}
	rec.attempts++
	rec.lastKind = apperrors.KindOf(err)
	rec.scheduled = true

	delay := c.delayFor(rec.attempts)
	c.logger.Info("retry scheduled",
		"job_id", jobID,
		"attempt", rec.attempts,
		"delay", delay,
		"error_kind", rec.lastKind.String(),
	)

	c.timers[jobID] = time.AfterFunc(delay, func() {
		c.mu.Lock()
		delete(c.timers, jobID)
		if rec, ok := c.records[jobID]; ok {
			rec.scheduled = false
		}
		stopped := c.stopped
		c.mu.Unlock()

		if !stopped {
			resume()
		}
	})

	return rec.attempts
}

// Attempts returns the number of attempts consumed by the job so far.
func (c *Coordinator) Attempts(jobID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records[jobID]; ok {
		return rec.attempts
	}
	return 0
}

// Clear drops the job's retry record and any pending timer. Called on
// terminal success, cancellation, and explicit user resume, so a fresh
// user-initiated attempt starts with a full retry budget.
func (c *Coordinator) Clear(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[jobID]; ok {
		timer.Stop()
		delete(c.timers, jobID)
	}
	delete(c.records, jobID)
}

// Stop cancels all pending timers. Scheduled resumes that have not fired
// yet will not fire.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
}

func (c *Coordinator) delayFor(attempt int) time.Duration {
	delay := c.initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * defaultMultiplier)
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}
