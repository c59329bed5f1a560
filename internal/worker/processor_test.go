package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/queue"
	"github.com/shaiso/automateos/internal/repo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	workflows *repo.MemoryWorkflowRepo
	logs      *repo.MemoryExecutionLogRepo
	processor *Processor
}

func newFixture(timeout time.Duration) *fixture {
	f := &fixture{
		workflows: repo.NewMemoryWorkflowRepo(),
		logs:      repo.NewMemoryExecutionLogRepo(),
	}
	f.processor = NewProcessor(ProcessorConfig{
		Workflows:  f.workflows,
		Logs:       f.logs,
		JobTimeout: timeout,
		Logger:     testLogger(),
	})
	return f
}

func (f *fixture) addWorkflow(t *testing.T, nodes ...domain.NodeSpec) *domain.Workflow {
	t.Helper()
	wf := domain.NewWorkflow("test", "", domain.Definition{Nodes: nodes})
	if err := f.workflows.Create(context.Background(), wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}

func (f *fixture) logsFor(t *testing.T, wfID uuid.UUID) []domain.ExecutionLog {
	t.Helper()
	list, err := f.logs.ListByWorkflow(context.Background(), domain.ExecutionLogFilter{WorkflowID: wfID})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	return list
}

func webhookNode() domain.NodeSpec {
	return domain.NodeSpec{ID: "trigger", Type: "webhook", Config: map[string]any{"method": "POST"}}
}

// --- Processor Tests ---

func TestProcessor_Success(t *testing.T) {
	f := newFixture(0)
	wf := f.addWorkflow(t, webhookNode())
	job := domain.NewJob(wf.ID)

	out, err := f.processor.Process(context.Background(), job, map[string]any{"payload": map[string]any{"id": 1}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	result := out.(map[string]any)
	if result["status"] != "success" || result["workflow_id"] != wf.ID.String() {
		t.Errorf("unexpected result: %v", result)
	}

	logs := f.logsFor(t, wf.ID)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Status != domain.ExecutionStatusSuccess {
		t.Errorf("log status = %s", entry.Status)
	}
	if entry.JobID != job.ID || entry.CompletedAt == nil {
		t.Errorf("log = %+v", entry)
	}
	if entry.Result["workflow_name"] != "test" {
		t.Errorf("log result = %v", entry.Result)
	}
}

func TestProcessor_NodeFailure(t *testing.T) {
	f := newFixture(0)
	wf := f.addWorkflow(t,
		webhookNode(),
		domain.NodeSpec{ID: "gate", Type: "filter", Config: map[string]any{"condition": "{{payload.amount}} > 100"}},
	)

	_, err := f.processor.Process(context.Background(), domain.NewJob(wf.ID),
		map[string]any{"payload": map[string]any{"amount": 5}})

	var wfErr *domain.WorkflowExecutionError
	if !errors.As(err, &wfErr) {
		t.Fatalf("expected WorkflowExecutionError, got %v", err)
	}

	entry := f.logsFor(t, wf.ID)[0]
	if entry.Status != domain.ExecutionStatusFailed {
		t.Fatalf("log status = %s", entry.Status)
	}
	if !strings.HasPrefix(entry.ErrorMessage, "Node execution failed: ") {
		t.Errorf("error_message = %q", entry.ErrorMessage)
	}
	if entry.Result["status"] != "failed" {
		t.Errorf("log result = %v", entry.Result)
	}
}

func TestProcessor_WorkflowNotFound(t *testing.T) {
	f := newFixture(0)
	wfID := uuid.New()

	_, err := f.processor.Process(context.Background(), domain.NewJob(wfID), nil)
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
	if n := len(f.logsFor(t, wfID)); n != 0 {
		t.Errorf("expected no logs, got %d", n)
	}
}

func TestProcessor_InactiveWorkflow(t *testing.T) {
	f := newFixture(0)
	wf := f.addWorkflow(t, webhookNode())
	wf.IsActive = false
	f.workflows.Update(context.Background(), wf)

	_, err := f.processor.Process(context.Background(), domain.NewJob(wf.ID), nil)
	if !errors.Is(err, ErrWorkflowInactive) {
		t.Fatalf("expected ErrWorkflowInactive, got %v", err)
	}
	if n := len(f.logsFor(t, wf.ID)); n != 0 {
		t.Errorf("expected no logs, got %d", n)
	}
}

func TestProcessor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	f := newFixture(100 * time.Millisecond)
	wf := f.addWorkflow(t,
		webhookNode(),
		domain.NodeSpec{ID: "slow", Type: "http_request", Config: map[string]any{"method": "GET", "url": server.URL}},
	)

	start := time.Now()
	_, err := f.processor.Process(context.Background(), domain.NewJob(wf.ID), nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("job was not bounded by timeout: %v", time.Since(start))
	}

	entry := f.logsFor(t, wf.ID)[0]
	if entry.Status != domain.ExecutionStatusFailed {
		t.Errorf("log status = %s", entry.Status)
	}
}

func TestProcessor_InterruptClosesRunningLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0)
	wf := f.addWorkflow(t, webhookNode())
	job := domain.NewJob(wf.ID)
	job.MarkRunning()

	entry := domain.NewExecutionLog(wf.ID, job.ID, nil)
	if err := f.logs.Create(ctx, entry); err != nil {
		t.Fatal(err)
	}

	failure := &domain.FailureInfo{Type: queue.FailureTypeWorkerLost, Message: queue.WorkerLostMessage}
	if err := f.processor.Interrupt(ctx, job, failure); err != nil {
		t.Fatalf("interrupt: %v", err)
	}

	logs := f.logsFor(t, wf.ID)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.Status != domain.ExecutionStatusFailed {
		t.Errorf("log status = %s, want failed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("log completed_at not set")
	}
	if got.ErrorMessage != queue.WorkerLostMessage {
		t.Errorf("log error_message = %q", got.ErrorMessage)
	}

	// Повторный вызов и задание без записи журнала — не ошибка
	if err := f.processor.Interrupt(ctx, job, failure); err != nil {
		t.Errorf("second interrupt: %v", err)
	}
	if err := f.processor.Interrupt(ctx, domain.NewJob(wf.ID), failure); err != nil {
		t.Errorf("interrupt without log: %v", err)
	}
}

// --- Worker Tests ---

func TestWorker_ProcessesQueuedJobs(t *testing.T) {
	f := newFixture(0)
	wf := f.addWorkflow(t, webhookNode())

	q := queue.NewMemoryQueue(queue.Config{Concurrency: 1, Logger: testLogger()}, queue.NewMemoryJobStore(time.Hour))
	w := New(Config{Queue: q, Processor: f.processor, Logger: testLogger()})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	id, err := q.Enqueue(context.Background(), wf.ID, map[string]any{"payload": map[string]any{}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var job *domain.Job
	for time.Now().Before(deadline) {
		job, _ = q.Status(context.Background(), id)
		if job.Status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != domain.JobStatusFinished {
		t.Fatalf("job status = %s", job.Status)
	}

	logs := f.logsFor(t, wf.ID)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	entry := logs[0]
	if entry.WorkflowID != wf.ID || entry.JobID != id {
		t.Errorf("log = %+v", entry)
	}
	if entry.Status != domain.ExecutionStatusSuccess {
		t.Errorf("log status = %s", entry.Status)
	}
	if entry.CompletedAt == nil || entry.CompletedAt.Before(entry.StartedAt) {
		t.Errorf("completed_at = %v, started_at = %v", entry.CompletedAt, entry.StartedAt)
	}

	w.Stop()
	w.Stop()
	if !w.IsStopped() {
		t.Error("worker not stopped")
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped, got %v", err)
	}
}
