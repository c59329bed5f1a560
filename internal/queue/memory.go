package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/telemetry"
)

// memoryItem — задание в буфере.
type memoryItem struct {
	job     *domain.Job
	payload map[string]any
}

// MemoryQueue — in-process очередь: буферизованный канал и пул горутин.
//
// Задания не переживают рестарт процесса. Enqueue не блокируется:
// при заполненном буфере возвращается ErrQueueFull.
type MemoryQueue struct {
	name        string
	store       JobStore
	items       chan memoryItem
	concurrency int
	logger      *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewMemoryQueue создаёт MemoryQueue.
func NewMemoryQueue(cfg Config, store JobStore) *MemoryQueue {
	cfg.setDefaults()
	return &MemoryQueue{
		name:        cfg.Name,
		store:       store,
		items:       make(chan memoryItem, cfg.Capacity),
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger.With("component", "queue", "backend", BackendMemory),
		quit:        make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, workflowID uuid.UUID, payload map[string]any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return "", ErrQueueStopped
	}

	job := domain.NewJob(workflowID)
	if err := q.store.Save(ctx, job); err != nil {
		return "", err
	}

	select {
	case q.items <- memoryItem{job: job, payload: payload}:
	default:
		_ = q.store.Delete(ctx, job.ID)
		return "", ErrQueueFull
	}

	telemetry.RecordJobEnqueued(BackendMemory)
	q.logger.Debug("job enqueued", "job_id", job.ID, "workflow_id", workflowID)
	return job.ID, nil
}

func (q *MemoryQueue) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return status(ctx, q.store, jobID)
}

func (q *MemoryQueue) Info(ctx context.Context) (*Info, error) {
	return info(ctx, q.store, q.name, BackendMemory, len(q.items))
}

// Start запускает concurrency воркеров.
//
// Отмена ctx или Stop прекращают выбор новых заданий; текущие задания
// доводятся до конца (их ограничивает только таймаут задания).
func (q *MemoryQueue) Start(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}
	if q.started {
		return ErrAlreadyStarted
	}
	q.started = true

	jobCtx := context.WithoutCancel(ctx)
	r := &runner{backend: BackendMemory, store: q.store, handler: handler, logger: q.logger}

	for i := 0; i < q.concurrency; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.loop(ctx, jobCtx, r)
		}()
	}

	q.logger.Info("queue started", "concurrency", q.concurrency, "capacity", cap(q.items))
	return nil
}

func (q *MemoryQueue) loop(ctx, jobCtx context.Context, r *runner) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.quit:
			return
		case item := <-q.items:
			if err := r.run(jobCtx, item.job, item.payload); err != nil {
				q.logger.Error("failed to run job", "job_id", item.job.ID, "error", err)
			}
		}
	}
}

// Stop останавливает воркеры. Задания, оставшиеся в буфере,
// остаются в статусе queued.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.quit)
	q.mu.Unlock()

	q.wg.Wait()

	q.logger.Info("queue stopped", "pending", len(q.items))
}
