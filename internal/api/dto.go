package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
)

// Workflow DTOs

// CreateWorkflowRequest — запрос на создание workflow.
type CreateWorkflowRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	WebhookID   string            `json:"webhook_id,omitempty"`
	Definition  domain.Definition `json:"definition"`
	IsActive    *bool             `json:"is_active,omitempty"`
}

// UpdateWorkflowRequest — запрос на обновление workflow.
type UpdateWorkflowRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Definition  *domain.Definition `json:"definition,omitempty"`
	IsActive    *bool              `json:"is_active,omitempty"`
}

// WorkflowResponse — ответ с workflow.
type WorkflowResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	WebhookID   string            `json:"webhook_id"`
	WebhookURL  string            `json:"webhook_url"`
	Definition  domain.Definition `json:"definition"`
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// WorkflowFromDomain конвертирует domain.Workflow в WorkflowResponse.
func WorkflowFromDomain(wf domain.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		WebhookID:   wf.WebhookID,
		WebhookURL:  "/webhook/" + wf.WebhookID,
		Definition:  wf.Definition,
		IsActive:    wf.IsActive,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}
}

// Webhook DTOs

// WebhookResponse — ответ на вызов webhook.
type WebhookResponse struct {
	Message    string    `json:"message"`
	JobID      string    `json:"job_id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Status     string    `json:"status"`
	QueueType  string    `json:"queue_type"`
}

// Execution log DTOs

// ExecutionLogSummary — краткая запись журнала для списков.
type ExecutionLogSummary struct {
	ID           uuid.UUID  `json:"id"`
	WorkflowID   uuid.UUID  `json:"workflow_id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// LogSummaryFromDomain конвертирует domain.ExecutionLog в ExecutionLogSummary.
func LogSummaryFromDomain(l domain.ExecutionLog) ExecutionLogSummary {
	return ExecutionLogSummary{
		ID:           l.ID,
		WorkflowID:   l.WorkflowID,
		Status:       string(l.Status),
		StartedAt:    l.StartedAt,
		CompletedAt:  l.CompletedAt,
		ErrorMessage: l.ErrorMessage,
	}
}

// CountResponse — количество записей журнала.
type CountResponse struct {
	Count int64 `json:"count"`
}

// CleanupResponse — результат очистки журнала.
type CleanupResponse struct {
	DeletedCount int64  `json:"deleted_count"`
	DaysToKeep   int    `json:"days_to_keep"`
	Status       string `json:"status,omitempty"`
	DryRun       bool   `json:"dry_run"`
}
