// Package queue runs independent jobs under a concurrency ceiling.
//
// A Queue is built for one batch: jobs are appended, the queue is started,
// and the caller waits for it to drain. Admission is FIFO and eager: every
// time a job finishes, the next pending job is launched immediately, so the
// number of jobs in flight stays at the ceiling for as long as work remains.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is a single unit of remote work. A nil error is success.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stats counts jobs for one run. Completed+Failed equals Total once the
// queue has drained without a Stop.
type Stats struct {
	Total     int `json:"total" yaml:"total"`
	Completed int `json:"completed" yaml:"completed"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Observer is notified as jobs start and finish. Observers must not block;
// they are called from job goroutines.
type Observer interface {
	JobStarted(name string)
	JobFinished(name string, err error, elapsed time.Duration)
}

// Config configures a new queue.
type Config struct {
	Ceiling  int // Max jobs in flight (clamped to at least 1)
	Logger   *slog.Logger
	Observer Observer // Optional
}

// Queue is a bounded FIFO job runner.
type Queue struct {
	mu          sync.Mutex
	ceiling     int
	pending     []Job
	inflight    int
	maxInflight int
	active      bool
	stats       Stats
	ctx         context.Context

	// changed is closed and replaced on every state change that WaitIdle
	// cares about.
	changed chan struct{}

	logger   *slog.Logger
	observer Observer
}

// New creates a new queue.
func New(cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ceiling := cfg.Ceiling
	if ceiling < 1 {
		ceiling = 1
	}

	return &Queue{
		ceiling:  ceiling,
		ctx:      context.Background(),
		changed:  make(chan struct{}),
		logger:   logger.With("ceiling", ceiling),
		observer: cfg.Observer,
	}
}

// Append adds a job to the tail of the pending list. If the queue is
// active the job may be launched immediately.
func (q *Queue) Append(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, job)
	q.stats.Total++
	if q.active {
		q.admitLocked()
	}
	q.notifyLocked()
}

// Start activates the queue and launches jobs up to the ceiling.
// ctx is passed to every job run; cancelling it aborts in-flight work.
func (q *Queue) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.ctx = ctx
	q.active = true
	q.stats = Stats{Total: len(q.pending)}
	q.logger.Debug("queue started", "pending", len(q.pending))
	q.admitLocked()
	q.notifyLocked()
}

// Stop deactivates the queue and discards pending jobs. Jobs already in
// flight run to completion and are still counted.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.pending)
	q.active = false
	q.pending = nil
	q.logger.Debug("queue stopped", "dropped", dropped, "inflight", q.inflight)
	q.notifyLocked()
}

// WaitIdle blocks until no jobs are pending or in flight.
// A queue that holds pending jobs but was never started does not become idle.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 && q.inflight == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Stats returns a copy of the current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// InFlight returns the number of running jobs.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// Pending returns the number of jobs waiting for a slot.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// MaxInFlight returns the highest in-flight count observed.
func (q *Queue) MaxInFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxInflight
}

// Ceiling returns the concurrency ceiling.
func (q *Queue) Ceiling() int {
	return q.ceiling
}

// Active reports whether the queue is admitting jobs.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// admitLocked launches pending jobs while slots are free. Dequeue and the
// in-flight increment happen together under q.mu.
func (q *Queue) admitLocked() {
	for q.active && q.inflight < q.ceiling && len(q.pending) > 0 {
		job := q.pending[0]
		q.pending[0] = Job{}
		q.pending = q.pending[1:]

		q.inflight++
		if q.inflight > q.maxInflight {
			q.maxInflight = q.inflight
		}
		q.logger.Debug("job admitted", "job", job.Name, "inflight", q.inflight, "pending", len(q.pending))

		go q.run(q.ctx, job)
	}
}

func (q *Queue) run(ctx context.Context, job Job) {
	if q.observer != nil {
		q.observer.JobStarted(job.Name)
	}
	start := time.Now()

	err := q.invoke(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		q.logger.Warn("job failed", "job", job.Name, "error", err, "elapsed", elapsed)
	} else {
		q.logger.Debug("job completed", "job", job.Name, "elapsed", elapsed)
	}
	if q.observer != nil {
		q.observer.JobFinished(job.Name, err, elapsed)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		q.stats.Failed++
	} else {
		q.stats.Completed++
	}
	q.inflight--
	q.admitLocked()
	q.notifyLocked()
}

// invoke runs the job, converting a panic into an error.
func (q *Queue) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	return job.Run(ctx)
}

func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}
