package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/mq"
	"github.com/shaiso/automateos/internal/telemetry"
)

// Тип и сообщение ошибки для задания, чей воркер пропал.
const (
	FailureTypeWorkerLost = "worker_lost"
	WorkerLostMessage     = "Job was interrupted: worker lost before completion"
)

// RabbitMQQueue — долговечная сетевая очередь.
//
// Задания публикуются persistent-сообщениями в automateos.jobs,
// записи о заданиях хранятся в JobStore (Redis). Каждый из
// concurrency воркеров — отдельный mq.Consumer с prefetch 1.
type RabbitMQQueue struct {
	name        string
	conn        *mq.Connection
	publisher   *mq.Publisher
	store       JobStore
	concurrency int
	interrupted InterruptHandler
	logger      *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRabbitMQQueue создаёт RabbitMQQueue. Топология должна быть
// объявлена (mq.SetupTopology).
func NewRabbitMQQueue(cfg Config, store JobStore) *RabbitMQQueue {
	cfg.setDefaults()
	logger := cfg.Logger.With("component", "queue", "backend", BackendRabbitMQ)
	return &RabbitMQQueue{
		name:        cfg.Name,
		conn:        cfg.Conn,
		publisher:   mq.NewPublisher(cfg.Conn, logger),
		store:       store,
		concurrency: cfg.Concurrency,
		interrupted: cfg.OnInterrupted,
		logger:      logger,
	}
}

func (q *RabbitMQQueue) Enqueue(ctx context.Context, workflowID uuid.UUID, payload map[string]any) (string, error) {
	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return "", ErrQueueStopped
	}

	job := domain.NewJob(workflowID)
	if err := q.store.Save(ctx, job); err != nil {
		return "", err
	}

	err := q.publisher.PublishJob(ctx, mq.JobPayload{
		JobID:      job.ID,
		WorkflowID: workflowID,
		Payload:    payload,
		EnqueuedAt: job.CreatedAt,
	})
	if err != nil {
		_ = q.store.Delete(context.WithoutCancel(ctx), job.ID)
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	telemetry.RecordJobEnqueued(BackendRabbitMQ)
	q.logger.Debug("job enqueued", "job_id", job.ID, "workflow_id", workflowID)
	return job.ID, nil
}

func (q *RabbitMQQueue) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return status(ctx, q.store, jobID)
}

func (q *RabbitMQQueue) Info(ctx context.Context) (*Info, error) {
	length, err := mq.QueueLength(q.conn, mq.QueueJobsExecute)
	if err != nil {
		return nil, err
	}
	return info(ctx, q.store, q.name, BackendRabbitMQ, length)
}

// Start запускает consumers.
func (q *RabbitMQQueue) Start(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}
	if q.started {
		return ErrAlreadyStarted
	}
	q.started = true

	r := &runner{backend: BackendRabbitMQ, store: q.store, handler: handler, logger: q.logger}
	jobCtx := context.WithoutCancel(ctx)
	ctx, q.cancel = context.WithCancel(ctx)

	for i := 0; i < q.concurrency; i++ {
		consumer := mq.NewConsumer(q.conn, q.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsExecute),
			Tag:      fmt.Sprintf("automateos-worker-%d", i),
			Handler:  q.deliveryHandler(jobCtx, r),
			Prefetch: 1,
		})

		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				q.logger.Error("consumer error", "error", err)
			}
		}()
	}

	q.logger.Info("queue started", "concurrency", q.concurrency, "queue", mq.QueueJobsExecute)
	return nil
}

// deliveryHandler превращает сообщение в выполнение задания.
//
// Ошибка возвращается только при сбое хранилища: сообщение вернётся
// в очередь. Результат выполнения workflow (включая ошибку) сообщение
// подтверждает.
func (q *RabbitMQQueue) deliveryHandler(jobCtx context.Context, r *runner) mq.Handler {
	return func(_ context.Context, d *mq.Delivery) error {
		payload, err := mq.ParsePayload[mq.JobPayload](&d.Message)
		if err != nil {
			return fmt.Errorf("parse job payload: %w", err)
		}

		job, err := q.store.Get(jobCtx, payload.JobID)
		switch {
		case errors.Is(err, ErrJobNotFound):
			// Запись истекла, пока сообщение ждало в очереди
			job = &domain.Job{
				ID:         payload.JobID,
				WorkflowID: payload.WorkflowID,
				Status:     domain.JobStatusQueued,
				CreatedAt:  payload.EnqueuedAt,
			}
		case err != nil:
			return err
		}

		logger := telemetry.WithJobID(q.logger, job.ID)

		switch job.Status {
		case domain.JobStatusFinished, domain.JobStatusFailed:
			logger.Warn("duplicate delivery of completed job, skipping", "status", job.Status)
			return nil

		case domain.JobStatusRunning:
			// Воркер взял задание и пропал до завершения. Повторно
			// не выполняем: узлы могли иметь побочные эффекты.
			logger.Warn("job was running when redelivered, marking failed", "redelivered", d.Redelivered())
			failure := &domain.FailureInfo{Type: FailureTypeWorkerLost, Message: WorkerLostMessage}
			if q.interrupted != nil {
				if err := q.interrupted(jobCtx, job, failure); err != nil {
					return fmt.Errorf("complete interrupted job: %w", err)
				}
			}
			_ = job.MarkFailed(failure)
			if err := q.store.Save(jobCtx, job); err != nil {
				return err
			}
			telemetry.RecordJobCompleted(BackendRabbitMQ, string(job.Status))
			return nil
		}

		return r.run(jobCtx, job, payload.Payload)
	}
}

// Stop останавливает consumers и ждёт завершения текущих заданий.
func (q *RabbitMQQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	q.mu.Unlock()

	// Consumer завершается после обработки текущего сообщения
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()

	q.logger.Info("queue stopped")
}
