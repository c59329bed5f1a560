package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/nodes"
	"github.com/shaiso/automateos/internal/queue"
)

// maxWebhookBody — ограничение размера тела webhook.
const maxWebhookBody = 1 << 20

// TriggerWebhook ставит в очередь выполнение workflow.
// POST /webhook/{webhook_id}
//
// Метод запроса должен совпадать с method узла-триггера; workflow без
// валидного триггера принимает только POST. Тело запроса (JSON)
// становится payload; тело, которое не разбирается как JSON,
// заменяется пустым объектом.
func (h *Handler) TriggerWebhook(w http.ResponseWriter, r *http.Request) {
	webhookID := r.PathValue("webhook_id")

	wf, err := h.workflows.GetByWebhookID(r.Context(), webhookID)
	if HandleRepoError(w, h.log(r), err, "Webhook not found") {
		return
	}
	if !wf.IsActive {
		BadRequest(w, "Workflow is not active")
		return
	}
	if !acceptsMethod(wf, r.Method) {
		MethodNotAllowed(w, "Method "+r.Method+" is not allowed for this webhook")
		return
	}

	trigger := h.triggerData(r)

	jobID, err := h.queue.Enqueue(r.Context(), wf.ID, trigger)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			QueueFull(w)
			return
		}
		InternalError(w, h.log(r), err)
		return
	}

	h.log(r).Info("workflow execution enqueued",
		"workflow_id", wf.ID,
		"webhook_id", webhookID,
		"job_id", jobID,
	)

	Accepted(w, WebhookResponse{
		Message:    "Workflow execution enqueued",
		JobID:      jobID,
		WorkflowID: wf.ID,
		Status:     "accepted",
		QueueType:  h.queueType,
	})
}

// acceptsMethod проверяет метод запроса по узлам webhook определения.
func acceptsMethod(wf *domain.Workflow, method string) bool {
	hasTrigger := false
	for _, spec := range wf.Definition.Nodes {
		if spec.Type != nodes.TypeWebhook {
			continue
		}
		node, err := nodes.NewTriggerNode(spec.ID, spec.Config)
		if err != nil {
			continue
		}
		hasTrigger = true
		if node.(*nodes.TriggerNode).SupportsMethod(method) {
			return true
		}
	}
	return !hasTrigger && method == http.MethodPost
}

// triggerData собирает данные триггера из запроса:
// {payload, method, headers, url, timestamp}.
func (h *Handler) triggerData(r *http.Request) map[string]any {
	var payload any
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || json.Unmarshal(body, &payload) != nil || payload == nil {
		payload = map[string]any{}
	}

	headers := make(map[string]any, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return map[string]any{
		"payload":   payload,
		"method":    r.Method,
		"headers":   headers,
		"url":       scheme + "://" + r.Host + r.URL.RequestURI(),
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	}
}

// GetJob возвращает статус задания.
// GET /api/v1/jobs/{id}
//
// Для неизвестного id возвращается задание со статусом not_found (200).
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		InternalError(w, h.log(r), err)
		return
	}

	Success(w, job)
}

// GetQueueInfo возвращает сводку по очереди.
// GET /api/v1/queue
func (h *Handler) GetQueueInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.queue.Info(r.Context())
	if err != nil {
		InternalError(w, h.log(r), err)
		return
	}

	Success(w, info)
}
