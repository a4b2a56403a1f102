// Package jobs runs background work on a fixed pool of goroutines with a
// bounded retry budget. The report pipeline uses it to decouple request
// handling from CSV/PDF generation.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job identifies one unit of queued work. Workers reload whatever state
// they need from the database, so a job carries only its identifier and
// kind plus retry bookkeeping.
type Job struct {
	ID       string
	Type     string
	Attempt  int
	Enqueued time.Time
}

// Handler executes a single job. A non-nil error schedules a retry until
// the attempt budget runs out.
type Handler func(ctx context.Context, job Job) error

// QueueConfig tunes the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BufferSize < 1 {
		c.BufferSize = c.Workers * 4
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Queue dispatches jobs to a goroutine pool. It is in-memory only: pending
// jobs die with the process, so callers persist job state elsewhere and
// re-enqueue unfinished work on boot.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig

	pending chan Job
	wg      sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue prepares a queue. No workers run until Start.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		pending: make(chan Job, cfg.BufferSize),
	}
}

// Start launches the worker pool. Calling Start a second time is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.run(i + 1)
	}
	q.cfg.Logger.Sugar().Infow("job queue started",
		"queue", q.name, "workers", q.cfg.Workers, "buffer", q.cfg.BufferSize)
}

// Stop cancels the pool and blocks until every worker has returned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.ctx == nil {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.cfg.Logger.Sugar().Infow("job queue drained", "queue", q.name)
}

// Enqueue hands a job to the pool, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	q.mu.Unlock()

	if ctx == nil {
		return fmt.Errorf("queue %s: not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s: shutting down: %w", q.name, ctx.Err())
	}
}

func (q *Queue) run(id int) {
	defer q.wg.Done()
	log := q.cfg.Logger.Sugar().With("queue", q.name, "worker", id)
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err, log)
			}
		}
	}
}

// retry re-enqueues a failed job after a delay that grows with each
// attempt, until MaxRetries is exhausted.
func (q *Queue) retry(job Job, cause error, log *zap.SugaredLogger) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		log.Errorw("job abandoned after final attempt",
			"job_id", job.ID, "type", job.Type, "attempts", job.Attempt, "error", cause)
		return
	}
	delay := time.Duration(job.Attempt) * q.cfg.RetryDelay
	log.Warnw("job failed, scheduling retry",
		"job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "delay", delay, "error", cause)

	requeue := job
	time.AfterFunc(delay, func() {
		if err := q.Enqueue(requeue); err != nil {
			log.Errorw("retry dropped", "job_id", requeue.ID, "error", err)
		}
	})
}
