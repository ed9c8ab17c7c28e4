// Package queue implements the bounded-concurrency scheduler that sits
// in front of the completion API. It enforces a cap on in-flight work,
// a cap on backlog size, strict FIFO dispatch, and independent
// queue-wait and execution timeouts.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/rewriter/internal/core/apierror"
	"github.com/vietddude/rewriter/internal/core/domain"
	"github.com/vietddude/rewriter/internal/metrics"
)

// Operation is a unit of work accepted by the scheduler. Timeouts do
// not cancel it; a late result is discarded once its future settled.
type Operation func(ctx context.Context) (any, error)

// Config holds scheduler limits. Updates via UpdateConfig apply to
// subsequently admitted tasks only.
type Config struct {
	MaxConcurrent  int
	MaxQueueSize   int
	RequestTimeout time.Duration
	QueueTimeout   time.Duration
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxConcurrent:  5,
	MaxQueueSize:   100,
	RequestTimeout: 30 * time.Second,
	QueueTimeout:   60 * time.Second,
}

// Future is the single-settlement result channel for an enqueued task.
// Only the first settlement takes effect; later attempts are no-ops.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the task settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// task is owned exclusively by the scheduler from enqueue until its
// future settles.
type task struct {
	id          string
	op          Operation
	label       string
	enqueuedAt  time.Time
	execTimeout time.Duration
	waitTimer   *time.Timer
	future      *Future
}

// QueueStats is a point-in-time snapshot of scheduler state.
type QueueStats struct {
	QueueLength       int           `json:"queue_length"`
	ActiveCount       int           `json:"active_count"`
	TotalProcessed    int64         `json:"total_processed"`
	TotalErrors       int64         `json:"total_errors"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// Scheduler is the bounded-concurrency FIFO queue. A single mutex
// guards backlog, active set and counters, so admission, dispatch and
// completion never interleave mid-update.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	backlog []*task
	active  map[string]struct{}

	totalProcessed  int64
	totalErrors     int64
	totalProcessing time.Duration

	log *slog.Logger
}

// NewScheduler creates a scheduler with the given limits.
func NewScheduler(cfg Config, log *slog.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig.MaxConcurrent
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultConfig.MaxQueueSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig.RequestTimeout
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = DefaultConfig.QueueTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		active: make(map[string]struct{}),
		log:    log,
	}
}

// Enqueue admits an operation or rejects it synchronously with
// QUEUE_FULL when the backlog is at capacity. The returned future is
// already settled on rejection.
func (s *Scheduler) Enqueue(op Operation, label string) *Future {
	fut := newFuture()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.backlog) >= s.cfg.MaxQueueSize {
		fut.settle(nil, apierror.New(domain.ErrQueueFull, nil))
		return fut
	}

	t := &task{
		id:          uuid.New().String(),
		op:          op,
		label:       label,
		enqueuedAt:  time.Now(),
		execTimeout: s.cfg.RequestTimeout,
		future:      fut,
	}
	s.backlog = append(s.backlog, t)
	metrics.QueueDepth.Set(float64(len(s.backlog)))

	// Queue-wait timer; expiry removes only this task.
	t.waitTimer = time.AfterFunc(s.cfg.QueueTimeout, func() {
		s.expire(t.id)
	})

	s.dispatchLocked()
	return fut
}

// expire rejects a task still waiting in the backlog. Dispatched tasks
// are unaffected; their timer was stopped at dispatch.
func (s *Scheduler) expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.backlog {
		if t.id != id {
			continue
		}
		s.backlog = append(s.backlog[:i], s.backlog[i+1:]...)
		metrics.QueueDepth.Set(float64(len(s.backlog)))
		t.future.settle(nil, apierror.New(domain.ErrQueueTimeout, nil))
		s.log.Warn("task timed out in queue", "task_id", t.id, "label", t.label,
			"waited", time.Since(t.enqueuedAt))
		return
	}
}

// dispatchLocked fills free slots from the backlog in FIFO order.
// Caller must hold s.mu.
func (s *Scheduler) dispatchLocked() {
	for len(s.active) < s.cfg.MaxConcurrent && len(s.backlog) > 0 {
		t := s.backlog[0]
		s.backlog = s.backlog[1:]
		t.waitTimer.Stop()
		s.active[t.id] = struct{}{}
		go s.run(t)
	}
	metrics.QueueDepth.Set(float64(len(s.backlog)))
	metrics.QueueActive.Set(float64(len(s.active)))
}

// run executes a dispatched task, racing it against its execution
// timeout. The operation is not interrupted on timeout; its eventual
// result is discarded because the future has already settled.
func (s *Scheduler) run(t *task) {
	start := time.Now()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := t.op(context.Background())
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(t.execTimeout)
	defer timer.Stop()

	var out outcome
	select {
	case out = <-done:
	case <-timer.C:
		out = outcome{nil, apierror.New(domain.ErrExecutionTimeout, nil)}
		s.log.Warn("task execution timed out", "task_id", t.id, "label", t.label,
			"timeout", t.execTimeout)
	}

	s.complete(t, out.value, out.err, time.Since(start))
}

func (s *Scheduler) complete(t *task, value any, err error, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, t.id)
	s.totalProcessed++
	s.totalProcessing += elapsed
	if err != nil {
		s.totalErrors++
	}
	t.future.settle(value, err)

	metrics.QueueActive.Set(float64(len(s.active)))
	s.dispatchLocked()
}

// Stats returns a snapshot. It has no side effects.
func (s *Scheduler) Stats() QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := QueueStats{
		QueueLength:    len(s.backlog),
		ActiveCount:    len(s.active),
		TotalProcessed: s.totalProcessed,
		TotalErrors:    s.totalErrors,
	}
	if s.totalProcessed > 0 {
		stats.AvgProcessingTime = s.totalProcessing / time.Duration(s.totalProcessed)
	}
	return stats
}

// Healthy reports whether the queue is operating inside its margins:
// backlog below 80% of capacity, error rate below 50%, and average
// processing time below 80% of the execution timeout.
func (s *Scheduler) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if float64(len(s.backlog)) >= 0.8*float64(s.cfg.MaxQueueSize) {
		return false
	}
	if s.totalProcessed > 0 {
		errorRate := float64(s.totalErrors) / float64(s.totalProcessed)
		if errorRate >= 0.5 {
			return false
		}
		avg := s.totalProcessing / time.Duration(s.totalProcessed)
		if float64(avg) >= 0.8*float64(s.cfg.RequestTimeout) {
			return false
		}
	}
	return true
}

// Clear rejects every backlogged task with reason and empties the
// backlog. Already-active tasks are unaffected.
func (s *Scheduler) Clear(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.backlog {
		t.waitTimer.Stop()
		t.future.settle(nil, reason)
	}
	if n := len(s.backlog); n > 0 {
		s.log.Info("cleared backlog", "count", n)
	}
	s.backlog = nil
	metrics.QueueDepth.Set(0)
}

// UpdateConfig replaces the limits. Per-task timeouts are captured at
// admission, so changes affect subsequently admitted tasks only.
func (s *Scheduler) UpdateConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.MaxConcurrent > 0 {
		s.cfg.MaxConcurrent = cfg.MaxConcurrent
	}
	if cfg.MaxQueueSize > 0 {
		s.cfg.MaxQueueSize = cfg.MaxQueueSize
	}
	if cfg.RequestTimeout > 0 {
		s.cfg.RequestTimeout = cfg.RequestTimeout
	}
	if cfg.QueueTimeout > 0 {
		s.cfg.QueueTimeout = cfg.QueueTimeout
	}
	s.dispatchLocked()
}
