package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
)

// WorkflowStore — хранилище workflow.
// Реализации: *WorkflowRepo (PostgreSQL) и *MemoryWorkflowRepo.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	GetByWebhookID(ctx context.Context, webhookID string) (*domain.Workflow, error)
	List(ctx context.Context) ([]domain.Workflow, error)
	Update(ctx context.Context, wf *domain.Workflow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExecutionLogStore — журнал выполнения.
// Реализации: *ExecutionLogRepo (PostgreSQL) и *MemoryExecutionLogRepo.
//
// Complete обновляет только запись в статусе running, поэтому
// запись журнала завершается не больше одного раза.
type ExecutionLogStore interface {
	Create(ctx context.Context, log *domain.ExecutionLog) error
	Complete(ctx context.Context, id uuid.UUID, patch domain.ExecutionLogPatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecutionLog, error)
	GetByJobID(ctx context.Context, jobID string) (*domain.ExecutionLog, error)
	ListByWorkflow(ctx context.Context, filter domain.ExecutionLogFilter) ([]domain.ExecutionLog, error)
	CountByWorkflow(ctx context.Context, workflowID uuid.UUID, status domain.ExecutionStatus) (int64, error)
	DeleteOlderThan(ctx context.Context, filter domain.CleanupFilter) (int64, error)
	Stats(ctx context.Context, now time.Time) (*domain.LogStats, error)
}

var (
	_ WorkflowStore     = (*WorkflowRepo)(nil)
	_ WorkflowStore     = (*MemoryWorkflowRepo)(nil)
	_ ExecutionLogStore = (*ExecutionLogRepo)(nil)
	_ ExecutionLogStore = (*MemoryExecutionLogRepo)(nil)
)
