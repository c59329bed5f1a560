package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/telemetry"
)

// runner проводит задание через running → finished|failed.
// Общий для всех бэкендов.
type runner struct {
	backend string
	store   JobStore
	handler Handler
	logger  *slog.Logger
}

// run выполняет задание.
//
// Ошибка возвращается только если задание не удалось перевести в
// running: тогда оно не начиналось. Ошибка handler'а — это результат
// задания (failed), а не ошибка run.
func (r *runner) run(ctx context.Context, job *domain.Job, payload map[string]any) error {
	logger := telemetry.WithJobID(r.logger, job.ID)

	if err := job.MarkRunning(); err != nil {
		return err
	}
	if err := r.store.Save(ctx, job); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	logger.Info("job started", "workflow_id", job.WorkflowID)

	result, err := r.invoke(ctx, job, payload)
	if err != nil {
		_ = job.MarkFailed(domain.FailureFromError(err))
		logger.Warn("job failed", "error", err, "duration", job.Duration())
	} else {
		_ = job.MarkFinished(result)
		logger.Info("job finished", "duration", job.Duration())
	}

	// Финальный статус сохраняется и при остановке воркера
	if err := r.store.Save(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to save job result", "error", err)
	}

	telemetry.RecordJobCompleted(r.backend, string(job.Status))
	return nil
}

// invoke вызывает handler, превращая panic в ошибку.
func (r *runner) invoke(ctx context.Context, job *domain.Job, payload map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job handler panic: %v", rec)
		}
	}()
	return r.handler(ctx, job, payload)
}

// status возвращает задание или not_found.
func status(ctx context.Context, store JobStore, jobID string) (*domain.Job, error) {
	job, err := store.Get(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		return domain.NotFoundJob(jobID), nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// info собирает Info из счётчиков хранилища.
func info(ctx context.Context, store JobStore, name, backend string, length int) (*Info, error) {
	counts, err := store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{
		Name:             name,
		Backend:          backend,
		Length:           length,
		StartedJobCount:  counts.Started,
		FinishedJobCount: counts.Finished,
		FailedJobCount:   counts.Failed,
	}, nil
}
