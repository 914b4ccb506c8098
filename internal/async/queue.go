package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/ingest"
	"github.com/joseph-ayodele/freight-audit/internal/metrics"
)

// Job is one inbox pair waiting to be audited.
type Job struct {
	Pair        ingest.Pair
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes a single job.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is shut down")
)

type options struct {
	workers        int
	queueSize      int
	processTimeout time.Duration
}

type Option func(*options)

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithProcessTimeout bounds each Handle call; 0 disables.
func WithProcessTimeout(d time.Duration) Option {
	return func(o *options) { o.processTimeout = d }
}

// ProcessorQueue runs jobs on a fixed set of workers.
type ProcessorQueue struct {
	handler Handler
	opts    options
	logger  *slog.Logger

	jobs   chan Job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// canceled when Shutdown gives up waiting
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewProcessorQueue(h Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{workers: 2, queueSize: 64}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &ProcessorQueue{
		handler: h,
		opts:    o,
		logger:  logger,
		jobs:    make(chan Job, o.queueSize),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for i := 0; i < o.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Enqueue adds job without blocking. It fails with ErrQueueFull when every
// slot is taken and ErrQueueClosed after Shutdown.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.jobs <- job:
		metrics.QueueDepth.Inc()
		return nil
	default:
		metrics.InboxJobs.WithLabelValues("rejected").Inc()
		q.logger.Warn("queue.full", "pair", job.Pair.Key, "size", q.opts.queueSize)
		return ErrQueueFull
	}
}

func (q *ProcessorQueue) worker(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		metrics.QueueDepth.Dec()
		q.run(id, job)
	}
}

func (q *ProcessorQueue) run(id int, job Job) {
	ctx := q.baseCtx
	if q.opts.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.processTimeout)
		defer cancel()
	}

	start := time.Now()
	err := q.handler.Handle(ctx, job)
	attrs := []any{
		"worker", id,
		"pair", job.Pair.Key,
		"trace_id", job.TraceID,
		"waited_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		metrics.InboxJobs.WithLabelValues("error").Inc()
		q.logger.Error("queue.job.failed", append(attrs, "error", err)...)
		return
	}
	metrics.InboxJobs.WithLabelValues("ok").Inc()
	q.logger.Info("queue.job.ok", attrs...)
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx
// expires first, in-flight jobs are canceled.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.timeout", "error", ctx.Err())
		q.cancel()
		<-done
	}
	q.cancel()
}
