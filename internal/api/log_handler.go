package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/automateos/internal/domain"
)

const invalidStatusMessage = "Invalid status filter. Must be one of: success, failed, running"

// ListWorkflowLogs возвращает журнал выполнения workflow.
// GET /api/v1/workflows/{id}/logs?status=&limit=&offset=
//
// limit приводится к 1..100 (50 по умолчанию), offset — к >= 0.
func (h *Handler) ListWorkflowLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	status, ok := parseStatus(w, r)
	if !ok {
		return
	}

	limit, ok := parseInt(w, r, "limit", domain.DefaultLogLimit)
	if !ok {
		return
	}
	offset, ok := parseInt(w, r, "offset", 0)
	if !ok {
		return
	}

	if _, err := h.workflows.GetByID(r.Context(), id); HandleRepoError(w, h.log(r), err, "workflow not found") {
		return
	}

	// Явный limit=0 означает минимум, а не значение по умолчанию
	if limit < 1 {
		limit = 1
	}
	filter := domain.ExecutionLogFilter{WorkflowID: id, Status: status, Limit: limit, Offset: offset}
	filter.Normalize()

	logs, err := h.logs.ListByWorkflow(r.Context(), filter)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]ExecutionLogSummary, len(logs))
	for i, l := range logs {
		result[i] = LogSummaryFromDomain(l)
	}

	List(w, result, len(result))
}

// CountWorkflowLogs возвращает количество записей журнала workflow.
// GET /api/v1/workflows/{id}/logs/count?status=
func (h *Handler) CountWorkflowLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid workflow id")
	if !ok {
		return
	}

	status, ok := parseStatus(w, r)
	if !ok {
		return
	}

	if _, err := h.workflows.GetByID(r.Context(), id); HandleRepoError(w, h.log(r), err, "workflow not found") {
		return
	}

	count, err := h.logs.CountByWorkflow(r.Context(), id, status)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	Success(w, CountResponse{Count: count})
}

// GetExecutionLog возвращает запись журнала целиком.
// GET /api/v1/logs/{id}
func (h *Handler) GetExecutionLog(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid log id")
	if !ok {
		return
	}

	entry, err := h.logs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "execution log not found") {
		return
	}

	Success(w, entry)
}

// CleanupLogs удаляет старые записи журнала.
// DELETE /api/v1/logs/cleanup?days_to_keep=&status=&dry_run=
//
// days_to_keep приводится к 1..365. По умолчанию 30 дней, или 7 дней,
// если задан status.
func (h *Handler) CleanupLogs(w http.ResponseWriter, r *http.Request) {
	status, ok := parseStatus(w, r)
	if !ok {
		return
	}

	defaultDays := domain.DefaultRetentionDays
	if status != "" {
		defaultDays = domain.DefaultStatusRetentionDays
	}
	days, ok := parseInt(w, r, "days_to_keep", defaultDays)
	if !ok {
		return
	}
	days = domain.ClampRetentionDays(days)

	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			BadRequest(w, "invalid dry_run")
			return
		}
		dryRun = v
	}

	deleted, err := h.logs.DeleteOlderThan(r.Context(), domain.NewCleanupFilter(h.now(), days, status, dryRun))
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	h.log(r).Info("execution logs cleanup",
		"days_to_keep", days,
		"status", status,
		"dry_run", dryRun,
		"deleted_count", deleted,
	)

	Success(w, CleanupResponse{
		DeletedCount: deleted,
		DaysToKeep:   days,
		Status:       string(status),
		DryRun:       dryRun,
	})
}

// GetLogStats возвращает статистику журнала.
// GET /api/v1/logs/stats
func (h *Handler) GetLogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.logs.Stats(r.Context(), h.now())
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	Success(w, stats)
}

// parseStatus читает фильтр status. Пустой — без фильтра.
func parseStatus(w http.ResponseWriter, r *http.Request) (domain.ExecutionStatus, bool) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return "", true
	}
	status, ok := domain.ParseExecutionStatus(raw)
	if !ok {
		BadRequest(w, invalidStatusMessage)
		return "", false
	}
	return status, true
}

// parseInt читает целый query-параметр.
func parseInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		BadRequest(w, "invalid "+name)
		return 0, false
	}
	return v, true
}
