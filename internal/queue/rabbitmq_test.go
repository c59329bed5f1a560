package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/mq"
	"github.com/shaiso/automateos/internal/repo"
)

// newDeliveryFixture собирает обработчик сообщений без брокера.
func newDeliveryFixture(handler Handler) (*RabbitMQQueue, *MemoryJobStore, mq.Handler) {
	store := NewMemoryJobStore(time.Hour)
	q := &RabbitMQQueue{name: DefaultName, store: store, logger: testLogger()}
	r := &runner{backend: BackendRabbitMQ, store: store, handler: handler, logger: q.logger}
	return q, store, q.deliveryHandler(context.Background(), r)
}

func jobDelivery(job *domain.Job, payload map[string]any) *mq.Delivery {
	return &mq.Delivery{Message: mq.Message{
		ID:   uuid.NewString(),
		Type: mq.MessageTypeJobExecute,
		Payload: mq.JobPayload{
			JobID:      job.ID,
			WorkflowID: job.WorkflowID,
			Payload:    payload,
			EnqueuedAt: job.CreatedAt,
		},
	}}
}

// --- Delivery Tests ---

func TestDelivery_RunsQueuedJob(t *testing.T) {
	var got map[string]any
	_, store, handle := newDeliveryFixture(func(_ context.Context, _ *domain.Job, payload map[string]any) (any, error) {
		got = payload
		return "ok", nil
	})

	job := domain.NewJob(uuid.New())
	store.Save(context.Background(), job)

	if err := handle(context.Background(), jobDelivery(job, map[string]any{"a": "b"})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got["a"] != "b" {
		t.Errorf("payload = %v", got)
	}

	saved, _ := store.Get(context.Background(), job.ID)
	if saved.Status != domain.JobStatusFinished || saved.Result != "ok" {
		t.Errorf("job = %+v", saved)
	}
}

func TestDelivery_MissingRecordIsRebuilt(t *testing.T) {
	_, store, handle := newDeliveryFixture(func(context.Context, *domain.Job, map[string]any) (any, error) {
		return nil, nil
	})

	job := domain.NewJob(uuid.New())
	if err := handle(context.Background(), jobDelivery(job, nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	saved, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job not saved: %v", err)
	}
	if saved.Status != domain.JobStatusFinished || saved.WorkflowID != job.WorkflowID {
		t.Errorf("job = %+v", saved)
	}
}

func TestDelivery_CompletedJobIsSkipped(t *testing.T) {
	calls := 0
	_, store, handle := newDeliveryFixture(func(context.Context, *domain.Job, map[string]any) (any, error) {
		calls++
		return nil, nil
	})

	job := finishedJob(t, "done")
	store.Save(context.Background(), job)

	if err := handle(context.Background(), jobDelivery(job, nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if calls != 0 {
		t.Errorf("handler called %d times for completed job", calls)
	}
}

func TestDelivery_RunningJobMarkedWorkerLost(t *testing.T) {
	calls := 0
	_, store, handle := newDeliveryFixture(func(context.Context, *domain.Job, map[string]any) (any, error) {
		calls++
		return nil, nil
	})

	job := domain.NewJob(uuid.New())
	job.MarkRunning()
	store.Save(context.Background(), job)

	if err := handle(context.Background(), jobDelivery(job, nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if calls != 0 {
		t.Error("interrupted job must not be re-executed")
	}

	saved, _ := store.Get(context.Background(), job.ID)
	if saved.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", saved.Status)
	}
	if saved.FailureInfo.Type != FailureTypeWorkerLost {
		t.Errorf("failure type = %s", saved.FailureInfo.Type)
	}
}

func TestDelivery_WorkerLostClosesExecutionLog(t *testing.T) {
	ctx := context.Background()
	q, store, handle := newDeliveryFixture(func(context.Context, *domain.Job, map[string]any) (any, error) {
		return nil, nil
	})

	logs := repo.NewMemoryExecutionLogRepo()
	q.interrupted = func(ctx context.Context, job *domain.Job, failure *domain.FailureInfo) error {
		entry, err := logs.GetByJobID(ctx, job.ID)
		if err != nil {
			return err
		}
		return logs.Complete(ctx, entry.ID, domain.ExecutionLogPatch{
			Status:       domain.ExecutionStatusFailed,
			ErrorMessage: failure.Message,
			CompletedAt:  time.Now().UTC(),
		})
	}

	job := domain.NewJob(uuid.New())
	job.MarkRunning()
	store.Save(ctx, job)
	entry := domain.NewExecutionLog(job.WorkflowID, job.ID, nil)
	logs.Create(ctx, entry)

	if err := handle(ctx, jobDelivery(job, nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, _ := logs.GetByID(ctx, entry.ID)
	if got.Status != domain.ExecutionStatusFailed {
		t.Errorf("log status = %s, want failed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("log completed_at not set")
	}
	if got.ErrorMessage != WorkerLostMessage {
		t.Errorf("log error_message = %q", got.ErrorMessage)
	}
}

func TestDelivery_WorkerLostHookErrorRequeues(t *testing.T) {
	q, store, handle := newDeliveryFixture(func(context.Context, *domain.Job, map[string]any) (any, error) {
		return nil, nil
	})
	q.interrupted = func(context.Context, *domain.Job, *domain.FailureInfo) error {
		return errors.New("db down")
	}

	job := domain.NewJob(uuid.New())
	job.MarkRunning()
	store.Save(context.Background(), job)

	if err := handle(context.Background(), jobDelivery(job, nil)); err == nil {
		t.Fatal("expected error to requeue delivery")
	}

	saved, _ := store.Get(context.Background(), job.ID)
	if saved.Status != domain.JobStatusRunning {
		t.Errorf("status = %s, job must stay running until the log is closed", saved.Status)
	}
}

func TestDelivery_MalformedPayload(t *testing.T) {
	_, _, handle := newDeliveryFixture(func(context.Context, *domain.Job, map[string]any) (any, error) {
		return nil, nil
	})

	d := &mq.Delivery{Message: mq.Message{Type: mq.MessageTypeJobExecute, Payload: "garbage"}}
	if err := handle(context.Background(), d); err == nil {
		t.Error("expected error for malformed payload")
	}
}
