package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/submissions"
)

type fakeProcessor struct {
	mu      sync.Mutex
	paths   []string
	traces  []string
	failFor string
	block   chan struct{}
}

func (f *fakeProcessor) ProcessFile(ctx context.Context, path string) (*submissions.ProcessResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.traces = append(f.traces, common.RequestIDFromContext(ctx))
	f.mu.Unlock()
	if path == f.failFor {
		return nil, common.UnreadableDocument("bad", nil)
	}
	return &submissions.ProcessResult{Status: constants.StatusCreated, SubmissionID: "ID_" + path}, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestProcessorQueueDrains(t *testing.T) {
	proc := &fakeProcessor{failFor: "b.pdf"}
	var mu sync.Mutex
	outcomes := map[string]error{}
	q := NewProcessorQueue(proc, quietLogger(),
		WithWorkers(2),
		WithQueueSize(1),
		WithProcessTimeout(time.Second),
		WithResultFunc(func(job Job, _ *submissions.ProcessResult, err error) {
			mu.Lock()
			outcomes[job.Path] = err
			mu.Unlock()
		}),
	)

	for _, p := range []string{"a.pdf", "b.pdf", "c.txt"} {
		if err := q.Enqueue(context.Background(), NewJob(p)); err != nil {
			t.Fatalf("Enqueue(%s): %v", p, err)
		}
	}
	q.Shutdown(context.Background())

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %v", outcomes)
	}
	if !errors.Is(outcomes["b.pdf"], common.ErrUnreadableDocument) || outcomes["a.pdf"] != nil {
		t.Fatalf("outcomes = %v", outcomes)
	}
	for _, tr := range proc.traces {
		if tr == "" {
			t.Fatalf("job ran without a request id")
		}
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, quietLogger(), WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	if err := q.Enqueue(context.Background(), NewJob("x.pdf")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnqueueHonoursContextWhenFull(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithQueueSize(1))

	// one job held by the worker, one filling the buffer
	_ = q.Enqueue(context.Background(), NewJob("1.pdf"))
	deadline := time.Now().Add(time.Second)
	for len(q.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	_ = q.Enqueue(context.Background(), NewJob("2.pdf"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, NewJob("3.pdf")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	close(proc.block)
	q.Shutdown(context.Background())
	if len(proc.paths) != 2 {
		t.Fatalf("processed = %v", proc.paths)
	}
}

func TestShutdownReleasesBlockedProducer(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithQueueSize(1))

	_ = q.Enqueue(context.Background(), NewJob("1.pdf"))
	deadline := time.Now().Add(time.Second)
	for len(q.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	_ = q.Enqueue(context.Background(), NewJob("2.pdf"))

	// this producer has no deadline of its own
	errc := make(chan error, 1)
	go func() { errc <- q.Enqueue(context.Background(), NewJob("3.pdf")) }()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		q.Shutdown(context.Background())
		close(stopped)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("blocked Enqueue err = %v, want ErrQueueClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not release the blocked producer")
	}

	close(proc.block)
	<-stopped
	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.paths) != 2 {
		t.Fatalf("processed = %v, want the two queued jobs", proc.paths)
	}
}
