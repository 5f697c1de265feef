// Package messaging implements the in-process aggregation queue that
// decouples event ingestion from counter updates. Delivery to the applier
// is at-least-once; deduplication happens on the applier side via the
// processed marker, never here.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
	"github.com/arcadehub/arcade-events/internal/infrastructure/metrics"
	"github.com/arcadehub/arcade-events/pkg/retry"
)

// Queue errors.
var (
	// ErrQueueClosed is returned when enqueueing after shutdown began.
	ErrQueueClosed = errors.New("messaging: queue is closed")

	// ErrQueueFull is returned when the buffer is at capacity. The caller
	// already committed the event, so it treats this as a deferred
	// aggregation, not a failure.
	ErrQueueFull = errors.New("messaging: queue is full")
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// QueueConfig contains configuration for the Queue.
type QueueConfig struct {
	// BufferSize is the capacity of the task buffer.
	BufferSize int

	// WorkerCount is the number of concurrent apply workers.
	WorkerCount int

	// Retrier drives per-task retry against the applier. Nil selects
	// CounterRetrier.
	Retrier *retry.Retrier

	// MaxDeadLetters bounds the in-memory dead letter buffer. Oldest
	// entries are dropped beyond this; reconciliation recovers them.
	MaxDeadLetters int

	// DrainTimeout bounds how long Close waits for in-flight tasks.
	DrainTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultQueueConfig returns sensible defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize:     1024,
		WorkerCount:    4,
		MaxDeadLetters: 256,
		DrainTimeout:   10 * time.Second,
	}
}

// Queue is a bounded in-process queue feeding score increments to an
// applier through a worker pool. Implements stats.Enqueuer.
type Queue struct {
	applier stats.Applier
	tasks   chan stats.Increment
	retrier *retry.Retrier
	logger  *slog.Logger

	workers        int
	maxDeadLetters int
	drainTimeout   time.Duration

	mu          sync.Mutex
	deadLetters []stats.Increment
	closed      bool

	wg sync.WaitGroup
}

// NewQueue creates a new Queue. Start must be called before tasks are
// consumed.
func NewQueue(applier stats.Applier, config QueueConfig) *Queue {
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.MaxDeadLetters <= 0 {
		config.MaxDeadLetters = 256
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = 10 * time.Second
	}
	if config.Retrier == nil {
		config.Retrier = retry.CounterRetrier()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Queue{
		applier:        applier,
		tasks:          make(chan stats.Increment, config.BufferSize),
		retrier:        config.Retrier,
		logger:         config.Logger,
		workers:        config.WorkerCount,
		maxDeadLetters: config.MaxDeadLetters,
		drainTimeout:   config.DrainTimeout,
		deadLetters:    make([]stats.Increment, 0),
	}
}

// Start launches the worker pool. The workers stop when ctx is cancelled
// or the queue is closed, whichever comes first.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Enqueue hands an increment to the worker pool. Never blocks: a full
// buffer is reported immediately so the ingest path stays fast.
//
// The send happens under the same lock Close holds when it closes the
// channel, so a concurrent Close cannot close it mid-send.
func (q *Queue) Enqueue(ctx context.Context, inc stats.Increment) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- inc:
		metrics.QueueDepth.Set(float64(len(q.tasks)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Depth returns the number of buffered tasks.
func (q *Queue) Depth() int {
	return len(q.tasks)
}

// DeadLetters returns a copy of the tasks that exhausted their retries.
func (q *Queue) DeadLetters() []stats.Increment {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]stats.Increment, len(q.deadLetters))
	copy(out, q.deadLetters)
	return out
}

// Close stops accepting tasks and waits for in-flight ones to drain, up
// to the drain timeout.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(q.drainTimeout):
		return errors.New("messaging: drain timeout, some tasks left to reconciliation")
	}
}

// worker consumes tasks until the channel is closed or ctx is cancelled.
func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		select {
		case inc, ok := <-q.tasks:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(q.tasks)))
			q.process(ctx, inc)
		case <-ctx.Done():
			return
		}
	}
}

// process applies one increment with retries. Permanent failures go to
// the dead letter buffer; the event log keeps the truth either way.
func (q *Queue) process(ctx context.Context, inc stats.Increment) {
	err := q.retrier.Do(ctx, func(ctx context.Context) error {
		inc.Attempt++
		if inc.Attempt > 1 {
			metrics.AggregationRetries.Inc()
		}

		applyErr := q.applier.Apply(ctx, inc)
		if applyErr == nil {
			return nil
		}
		if shared.IsRetryable(applyErr) {
			return retry.Retryable(applyErr)
		}
		return retry.Permanent(applyErr)
	})
	if err == nil {
		return
	}

	q.logger.Error("aggregation task dead-lettered",
		"event_id", inc.EventID.String(),
		"user_id", int64(inc.UserID),
		"delta", inc.Delta,
		"attempts", inc.Attempt,
		"error", err,
	)
	metrics.AggregationsDeadLettered.Inc()

	q.mu.Lock()
	q.deadLetters = append(q.deadLetters, inc)
	if len(q.deadLetters) > q.maxDeadLetters {
		q.deadLetters = q.deadLetters[len(q.deadLetters)-q.maxDeadLetters:]
	}
	q.mu.Unlock()
}
