package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
)

// ListWorkflows возвращает список всех workflow.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.workflows.List(r.Context())
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]WorkflowResponse, len(workflows))
	for i, wf := range workflows {
		result[i] = WorkflowFromDomain(wf)
	}

	List(w, result, len(result))
}

// CreateWorkflow создаёт новый workflow.
// POST /api/v1/workflows
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if report := h.engine.Validate(&req.Definition); !report.Valid {
		ValidationFailed(w, report)
		return
	}

	wf := domain.NewWorkflow(req.Name, req.WebhookID, req.Definition)
	wf.Description = req.Description
	if req.IsActive != nil {
		wf.IsActive = *req.IsActive
	}

	if HandleRepoError(w, h.log(r), h.workflows.Create(r.Context(), wf), "") {
		return
	}

	h.log(r).Info("workflow created", "workflow_id", wf.ID, "webhook_id", wf.WebhookID)
	Created(w, WorkflowFromDomain(*wf))
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "workflow not found") {
		return
	}

	Success(w, WorkflowFromDomain(*wf))
}

// UpdateWorkflow обновляет workflow.
// PUT /api/v1/workflows/{id}
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	var req UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "workflow not found") {
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			BadRequest(w, "name must not be empty")
			return
		}
		wf.Name = name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.Definition != nil {
		if report := h.engine.Validate(req.Definition); !report.Valid {
			ValidationFailed(w, report)
			return
		}
		wf.Definition = *req.Definition
	}
	if req.IsActive != nil {
		wf.IsActive = *req.IsActive
	}

	if HandleRepoError(w, h.log(r), h.workflows.Update(r.Context(), wf), "workflow not found") {
		return
	}

	Success(w, WorkflowFromDomain(*wf))
}

// DeleteWorkflow удаляет workflow.
// DELETE /api/v1/workflows/{id}
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	if HandleRepoError(w, h.log(r), h.workflows.Delete(r.Context(), id), "workflow not found") {
		return
	}

	h.log(r).Info("workflow deleted", "workflow_id", id)
	NoContent(w)
}

// ValidateWorkflow проверяет определение без сохранения.
// POST /api/v1/workflows/validate
func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Definition domain.Definition `json:"definition"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	Success(w, h.engine.Validate(&req.Definition))
}

// parseID читает {id} из пути. При ошибке отвечает 400.
func parseID(w http.ResponseWriter, r *http.Request, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, message)
		return uuid.Nil, false
	}
	return id, true
}
