package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/submissions"
)

// FileProcessor is the part of submissions.Service the workers call.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (*submissions.ProcessResult, error)
}

// ResultFunc observes every finished job. It runs on the worker goroutine.
type ResultFunc func(job Job, res *submissions.ProcessResult, err error)

var _ Queue = (*ProcessorQueue)(nil)

type ProcessorQueue struct {
	proc     FileProcessor
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onResult ResultFunc

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// done is closed by Shutdown to release producers blocked on a full ch;
	// senders counts producers that may still send on ch.
	done    chan struct{}
	senders sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithResultFunc(f ResultFunc) Option {
	return func(q *ProcessorQueue) { q.onResult = f }
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 256),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.run(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("worker started", "worker_id", workerID)

	for job := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		ctx = common.WithRequestID(ctx, job.TraceID)
		res, err := q.proc.ProcessFile(ctx, job.Path)
		cancel()

		if err != nil {
			q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "request_id", job.TraceID, "error", err)
		} else {
			q.logger.Info("processed document",
				"worker_id", workerID,
				"path", job.Path,
				"submission_id", res.SubmissionID,
				"status", res.Status,
				"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
			)
		}
		if q.onResult != nil {
			q.onResult(job, res, err)
		}
	}

	q.logger.Debug("worker stopped", "worker_id", workerID)
}

// Enqueue blocks while the buffer is full, until ctx is done or the queue
// shuts down.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case q.ch <- job:
		q.logger.Debug("queued document", "path", job.Path, "request_id", job.TraceID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-q.done:
		q.logger.Warn("queue shut down while waiting", "path", job.Path)
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain, or for ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	// no producer can be sending once senders drains
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
