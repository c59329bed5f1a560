package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(capacity int) *MemoryQueue {
	return NewMemoryQueue(Config{
		Backend:     BackendMemory,
		Concurrency: 2,
		Capacity:    capacity,
		Logger:      testLogger(),
	}, NewMemoryJobStore(time.Hour))
}

// waitTerminal ждёт, пока задание не завершится.
func waitTerminal(t *testing.T, q Queue, id string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not complete", id)
	return nil
}

// --- MemoryQueue Tests ---

func TestMemoryQueue_Execute(t *testing.T) {
	q := newTestQueue(10)
	defer q.Stop()

	handler := func(_ context.Context, job *domain.Job, payload map[string]any) (any, error) {
		if payload["fail"] == true {
			return nil, &domain.WorkflowExecutionError{
				WorkflowID: job.WorkflowID,
				Message:    "Workflow execution failed: boom",
				Details:    map[string]any{"status": "failed"},
			}
		}
		return map[string]any{"status": "success", "echo": payload["x"]}, nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("start: %v", err)
	}

	okID, err := q.Enqueue(context.Background(), uuid.New(), map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	failID, _ := q.Enqueue(context.Background(), uuid.New(), map[string]any{"fail": true})

	ok := waitTerminal(t, q, okID)
	if ok.Status != domain.JobStatusFinished {
		t.Fatalf("status = %s, want finished", ok.Status)
	}
	if ok.StartedAt == nil || ok.EndedAt == nil {
		t.Error("timestamps not set")
	}
	if ok.Result.(map[string]any)["echo"] != 1 {
		t.Errorf("result = %v", ok.Result)
	}

	failed := waitTerminal(t, q, failID)
	if failed.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}
	if failed.FailureInfo.Type != domain.ErrorTypeWorkflowExecution {
		t.Errorf("failure type = %s", failed.FailureInfo.Type)
	}
	if failed.FailureInfo.Details["status"] != "failed" {
		t.Errorf("failure details = %v", failed.FailureInfo.Details)
	}

	info, err := q.Info(context.Background())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Name != DefaultName || info.Backend != BackendMemory {
		t.Errorf("info = %+v", info)
	}
	if info.FinishedJobCount != 1 || info.FailedJobCount != 1 || info.Length != 0 {
		t.Errorf("counts = %+v", info)
	}
}

func TestMemoryQueue_HandlerPanic(t *testing.T) {
	q := newTestQueue(10)
	defer q.Stop()

	q.Start(context.Background(), func(context.Context, *domain.Job, map[string]any) (any, error) {
		panic("kaboom")
	})

	id, _ := q.Enqueue(context.Background(), uuid.New(), nil)
	job := waitTerminal(t, q, id)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if !strings.Contains(job.FailureInfo.Message, "kaboom") {
		t.Errorf("message = %q", job.FailureInfo.Message)
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	q := newTestQueue(1)

	if _, err := q.Enqueue(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), uuid.New(), nil); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	info, _ := q.Info(context.Background())
	if info.Length != 1 {
		t.Errorf("length = %d, want 1", info.Length)
	}
}

func TestMemoryQueue_StatusNotFound(t *testing.T) {
	q := newTestQueue(1)

	job, err := q.Status(context.Background(), "nope")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if job.Status != domain.JobStatusNotFound || job.Error != domain.JobNotFoundMessage {
		t.Errorf("job = %+v", job)
	}
}

func TestMemoryQueue_StartStop(t *testing.T) {
	q := newTestQueue(1)
	noop := func(context.Context, *domain.Job, map[string]any) (any, error) { return nil, nil }

	if err := q.Start(context.Background(), noop); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := q.Start(context.Background(), noop); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	q.Stop()
	q.Stop()

	if _, err := q.Enqueue(context.Background(), uuid.New(), nil); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("expected ErrQueueStopped, got %v", err)
	}
	if err := q.Start(context.Background(), noop); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("expected ErrQueueStopped, got %v", err)
	}
}

func TestMemoryQueue_StopWaitsForRunningJob(t *testing.T) {
	q := newTestQueue(1)

	started := make(chan struct{})
	var done atomic.Bool
	q.Start(context.Background(), func(ctx context.Context, _ *domain.Job, _ map[string]any) (any, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		done.Store(true)
		return nil, nil
	})

	id, _ := q.Enqueue(context.Background(), uuid.New(), nil)
	<-started
	q.Stop()

	if !done.Load() {
		t.Fatal("running job was interrupted by Stop")
	}
	job, _ := q.Status(context.Background(), id)
	if job.Status != domain.JobStatusFinished {
		t.Errorf("status = %s, want finished", job.Status)
	}
}

// --- New Tests ---

func TestNew(t *testing.T) {
	q, err := New(Config{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := q.(*MemoryQueue); !ok {
		t.Errorf("expected *MemoryQueue, got %T", q)
	}

	if _, err := New(Config{Backend: BackendRabbitMQ}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("rabbitmq without connection: %v", err)
	}
	if _, err := New(Config{Backend: "kafka"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("unknown backend: %v", err)
	}
}
