package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(h.logger),
		Logging(),
	)

	// Webhook trigger: метод проверяет узел-триггер workflow
	mux.Handle("/webhook/{webhook_id}", chain(http.HandlerFunc(h.TriggerWebhook)))

	// Queue
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("GET /api/v1/queue", chain(http.HandlerFunc(h.GetQueueInfo)))

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.CreateWorkflow)))
	mux.Handle("POST /api/v1/workflows/validate", chain(http.HandlerFunc(h.ValidateWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("PUT /api/v1/workflows/{id}", chain(http.HandlerFunc(h.UpdateWorkflow)))
	mux.Handle("DELETE /api/v1/workflows/{id}", chain(http.HandlerFunc(h.DeleteWorkflow)))

	// Execution logs
	mux.Handle("GET /api/v1/workflows/{id}/logs", chain(http.HandlerFunc(h.ListWorkflowLogs)))
	mux.Handle("GET /api/v1/workflows/{id}/logs/count", chain(http.HandlerFunc(h.CountWorkflowLogs)))
	mux.Handle("GET /api/v1/logs/stats", chain(http.HandlerFunc(h.GetLogStats)))
	mux.Handle("DELETE /api/v1/logs/cleanup", chain(http.HandlerFunc(h.CleanupLogs)))
	mux.Handle("GET /api/v1/logs/{id}", chain(http.HandlerFunc(h.GetExecutionLog)))
}
