package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/orchestrator"
	"github.com/shaiso/automateos/internal/repo"
	"github.com/shaiso/automateos/internal/telemetry"
)

// DefaultJobTimeout — сколько может выполняться одно задание.
const DefaultJobTimeout = 10 * time.Minute

// Processor выполняет одно задание очереди.
//
// Processor.Process имеет сигнатуру queue.Handler и передаётся в
// Queue.Start.
type Processor struct {
	workflows repo.WorkflowStore
	logs      repo.ExecutionLogStore
	engine    *orchestrator.Engine
	timeout   time.Duration
	logger    *slog.Logger
}

// ProcessorConfig — конфигурация Processor.
type ProcessorConfig struct {
	Workflows repo.WorkflowStore
	Logs      repo.ExecutionLogStore

	// Engine — оркестратор (опционально; если nil — orchestrator.New с
	// реестром по умолчанию).
	Engine *orchestrator.Engine

	// JobTimeout — таймаут выполнения workflow (default: 10m).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// NewProcessor создаёт Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := cfg.Engine
	if engine == nil {
		engine = orchestrator.New(orchestrator.Config{Logger: logger})
	}

	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	return &Processor{
		workflows: cfg.Workflows,
		logs:      cfg.Logs,
		engine:    engine,
		timeout:   timeout,
		logger:    logger.With("component", "processor"),
	}
}

// Process выполняет workflow задания.
//
// Порядок:
//  1. Загружает workflow; отсутствующий или неактивный workflow — ошибка
//     без записи в журнал
//  2. Создаёт запись журнала в статусе running
//  3. Выполняет workflow с таймаутом задания
//  4. Завершает запись журнала (success или failed)
//
// При успехе возвращает ExecutionResult в виде map. Ошибка выполнения
// возвращается как есть: очередь переводит задание в failed.
func (p *Processor) Process(ctx context.Context, job *domain.Job, payload map[string]any) (any, error) {
	logger := telemetry.WithWorkflowID(telemetry.WithJobID(p.logger, job.ID), job.WorkflowID.String())

	wf, err := p.workflows.GetByID(ctx, job.WorkflowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, job.WorkflowID)
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if !wf.IsActive {
		logger.Warn("workflow is not active, skipping")
		return nil, fmt.Errorf("%w: %s", ErrWorkflowInactive, wf.ID)
	}

	if payload == nil {
		payload = map[string]any{}
	}

	entry := domain.NewExecutionLog(wf.ID, job.ID, payload)
	if err := p.logs.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create execution log: %w", err)
	}

	logger.Info("processing job", "execution_log_id", entry.ID, "workflow_name", wf.Name)

	runCtx, cancel := context.WithTimeout(telemetry.WithLogger(ctx, logger), p.timeout)
	result, runErr := p.engine.Execute(runCtx, wf, payload)
	cancel()

	var patch domain.ExecutionLogPatch
	if runErr != nil {
		patch = domain.FailurePatch(runErr)
	} else {
		patch = domain.SuccessPatch(result.Map())
	}

	// Запись завершается и при отменённом ctx
	if err := p.logs.Complete(context.WithoutCancel(ctx), entry.ID, patch); err != nil {
		logger.Error("failed to complete execution log",
			"execution_log_id", entry.ID,
			"error", err,
		)
	}

	if runErr != nil {
		logger.Warn("job failed", "execution_log_id", entry.ID, "error", runErr)
		return nil, runErr
	}

	logger.Info("job completed",
		"execution_log_id", entry.ID,
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)
	return result.Map(), nil
}

// Interrupt завершает запись журнала задания, чей воркер пропал во
// время выполнения. Имеет сигнатуру queue.InterruptHandler.
//
// Запись, которой нет или которая уже завершена, не считается ошибкой.
func (p *Processor) Interrupt(ctx context.Context, job *domain.Job, failure *domain.FailureInfo) error {
	logger := telemetry.WithJobID(p.logger, job.ID)

	entry, err := p.logs.GetByJobID(ctx, job.ID)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Debug("no execution log for interrupted job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get execution log: %w", err)
	}

	patch := domain.ExecutionLogPatch{
		Status:       domain.ExecutionStatusFailed,
		ErrorMessage: failure.Message,
		CompletedAt:  time.Now().UTC(),
	}
	err = p.logs.Complete(ctx, entry.ID, patch)
	if errors.Is(err, repo.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete execution log: %w", err)
	}

	logger.Warn("execution log closed after worker loss", "execution_log_id", entry.ID)
	return nil
}
