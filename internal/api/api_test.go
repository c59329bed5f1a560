package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/queue"
	"github.com/shaiso/automateos/internal/repo"
)

type testServer struct {
	mux       *http.ServeMux
	workflows *repo.MemoryWorkflowRepo
	logs      *repo.MemoryExecutionLogRepo
	queue     *queue.MemoryQueue
	handler   *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &testServer{
		mux:       http.NewServeMux(),
		workflows: repo.NewMemoryWorkflowRepo(),
		logs:      repo.NewMemoryExecutionLogRepo(),
		queue:     queue.NewMemoryQueue(queue.Config{Capacity: 2, Logger: logger}, queue.NewMemoryJobStore(time.Hour)),
	}
	s.handler = NewHandler(Config{
		Workflows: s.workflows,
		Logs:      s.logs,
		Queue:     s.queue,
		QueueType: queue.BackendMemory,
		Logger:    logger,
	})
	s.handler.RegisterRoutes(s.mux)
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) addWorkflow(t *testing.T, active bool) *domain.Workflow {
	t.Helper()
	wf := domain.NewWorkflow("orders", "", domain.Definition{Nodes: []domain.NodeSpec{
		{ID: "trigger", Type: "webhook", Config: map[string]any{"method": "POST"}},
	}})
	wf.IsActive = active
	if err := s.workflows.Create(context.Background(), wf); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}

func (s *testServer) addLog(t *testing.T, wfID uuid.UUID, status domain.ExecutionStatus, started time.Time) *domain.ExecutionLog {
	t.Helper()
	entry := domain.NewExecutionLog(wfID, "", map[string]any{})
	entry.StartedAt = started
	if err := s.logs.Create(context.Background(), entry); err != nil {
		t.Fatalf("create log: %v", err)
	}
	if status != domain.ExecutionStatusRunning {
		patch := domain.SuccessPatch(map[string]any{})
		if status == domain.ExecutionStatusFailed {
			patch = domain.ExecutionLogPatch{Status: status, ErrorMessage: "boom", CompletedAt: time.Now().UTC()}
		}
		s.logs.Complete(context.Background(), entry.ID, patch)
	}
	return entry
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, resp.Data)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp.Error
}

// --- Webhook Tests ---

func TestTriggerWebhook(t *testing.T) {
	s := newTestServer(t)
	wf := s.addWorkflow(t, true)

	req := httptest.NewRequest(http.MethodPost, "/webhook/"+wf.WebhookID+"?src=test", strings.NewReader(`{"order_id": 7}`))
	req.Header.Set("X-Signature", "abc")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp WebhookResponse
	decodeData(t, rec, &resp)
	if resp.Message != "Workflow execution enqueued" || resp.Status != "accepted" {
		t.Errorf("response = %+v", resp)
	}
	if resp.WorkflowID != wf.ID || resp.QueueType != queue.BackendMemory || resp.JobID == "" {
		t.Errorf("response = %+v", resp)
	}

	job, _ := s.queue.Status(context.Background(), resp.JobID)
	if job.Status != domain.JobStatusQueued || job.WorkflowID != wf.ID {
		t.Errorf("job = %+v", job)
	}
}

func TestTriggerWebhook_Errors(t *testing.T) {
	s := newTestServer(t)
	inactive := s.addWorkflow(t, false)

	rec := s.do(t, http.MethodPost, "/webhook/unknown", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown webhook: status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Message != "Webhook not found" {
		t.Errorf("message = %q", e.Message)
	}

	rec = s.do(t, http.MethodPost, "/webhook/"+inactive.WebhookID, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inactive: status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Message != "Workflow is not active" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestTriggerWebhook_Method(t *testing.T) {
	s := newTestServer(t)
	post := s.addWorkflow(t, true)

	rec := s.do(t, http.MethodGet, "/webhook/"+post.WebhookID, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on POST trigger: status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != ErrCodeMethodNotAllowed {
		t.Errorf("code = %s", e.Code)
	}

	get := domain.NewWorkflow("poll", "", domain.Definition{Nodes: []domain.NodeSpec{
		{ID: "trigger", Type: "webhook", Config: map[string]any{"method": "get"}},
	}})
	if err := s.workflows.Create(context.Background(), get); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	if rec := s.do(t, http.MethodGet, "/webhook/"+get.WebhookID, nil); rec.Code != http.StatusAccepted {
		t.Errorf("GET on GET trigger: status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/webhook/"+get.WebhookID, `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST on GET trigger: status = %d", rec.Code)
	}

	// Без триггера принимается только POST
	bare := domain.NewWorkflow("bare", "", domain.Definition{})
	s.workflows.Create(context.Background(), bare)
	if rec := s.do(t, http.MethodPost, "/webhook/"+bare.WebhookID, `{}`); rec.Code != http.StatusAccepted {
		t.Errorf("POST without trigger: status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPut, "/webhook/"+bare.WebhookID, `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT without trigger: status = %d", rec.Code)
	}
}

func TestTriggerWebhook_QueueFull(t *testing.T) {
	s := newTestServer(t)
	wf := s.addWorkflow(t, true)

	for i := 0; i < 2; i++ {
		if rec := s.do(t, http.MethodPost, "/webhook/"+wf.WebhookID, `{}`); rec.Code != http.StatusAccepted {
			t.Fatalf("enqueue %d: status = %d", i, rec.Code)
		}
	}

	rec := s.do(t, http.MethodPost, "/webhook/"+wf.WebhookID, `{}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestTriggerData(t *testing.T) {
	s := newTestServer(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.handler.now = func() time.Time { return fixed }

	tests := []struct {
		name    string
		body    string
		payload any
	}{
		{"object", `{"a": 1}`, map[string]any{"a": float64(1)}},
		{"invalid json", `not json`, map[string]any{}},
		{"empty body", ``, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://example.com/webhook/x?q=1", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			data := s.handler.triggerData(req)

			payload, _ := json.Marshal(data["payload"])
			want, _ := json.Marshal(tt.payload)
			if string(payload) != string(want) {
				t.Errorf("payload = %s, want %s", payload, want)
			}
			if data["method"] != "POST" {
				t.Errorf("method = %v", data["method"])
			}
			if data["url"] != "http://example.com/webhook/x?q=1" {
				t.Errorf("url = %v", data["url"])
			}
			if data["timestamp"] != "2024-01-02T03:04:05Z" {
				t.Errorf("timestamp = %v", data["timestamp"])
			}
			if data["headers"].(map[string]any)["Content-Type"] != "application/json" {
				t.Errorf("headers = %v", data["headers"])
			}
		})
	}
}

// --- Job & Queue Tests ---

func TestGetJob_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/jobs/missing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var job domain.Job
	decodeData(t, rec, &job)
	if job.Status != domain.JobStatusNotFound || job.Error != domain.JobNotFoundMessage {
		t.Errorf("job = %+v", job)
	}
}

func TestGetQueueInfo(t *testing.T) {
	s := newTestServer(t)
	wf := s.addWorkflow(t, true)
	s.do(t, http.MethodPost, "/webhook/"+wf.WebhookID, `{}`)

	rec := s.do(t, http.MethodGet, "/api/v1/queue", nil)
	var info queue.Info
	decodeData(t, rec, &info)
	if info.Name != queue.DefaultName || info.Backend != queue.BackendMemory || info.Length != 1 {
		t.Errorf("info = %+v", info)
	}
}

// --- Workflow Tests ---

func TestWorkflowCRUD(t *testing.T) {
	s := newTestServer(t)

	create := map[string]any{
		"name":       "orders",
		"webhook_id": "orders-hook",
		"definition": map[string]any{
			"nodes": []any{
				map[string]any{"id": "trigger", "type": "webhook", "config": map[string]any{"method": "POST"}},
			},
		},
	}
	rec := s.do(t, http.MethodPost, "/api/v1/workflows", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body)
	}
	var created WorkflowResponse
	decodeData(t, rec, &created)
	if created.WebhookURL != "/webhook/orders-hook" || !created.IsActive {
		t.Errorf("created = %+v", created)
	}

	// Повторный webhook_id
	rec = s.do(t, http.MethodPost, "/api/v1/workflows", create)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/v1/workflows/"+created.ID.String(), map[string]any{"is_active": false, "name": "orders-v2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d", rec.Code)
	}
	var updated WorkflowResponse
	decodeData(t, rec, &updated)
	if updated.IsActive || updated.Name != "orders-v2" {
		t.Errorf("updated = %+v", updated)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/workflows", nil)
	var list []WorkflowResponse
	decodeData(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("list = %d items", len(list))
	}

	rec = s.do(t, http.MethodDelete, "/api/v1/workflows/"+created.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/v1/workflows/"+created.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d", rec.Code)
	}
}

func TestCreateWorkflow_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		code ErrorCode
	}{
		{"bad json", `{`, ErrCodeBadRequest},
		{"no name", map[string]any{"definition": map[string]any{}}, ErrCodeBadRequest},
		{"no nodes", map[string]any{"name": "x", "definition": map[string]any{"nodes": []any{}}}, ErrCodeValidationFailed},
		{"unknown type", map[string]any{"name": "x", "definition": map[string]any{
			"nodes": []any{map[string]any{"id": "a", "type": "email"}},
		}}, ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/workflows", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if e := decodeError(t, rec); e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
		})
	}
}

func TestValidateWorkflow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/workflows/validate", map[string]any{
		"definition": map[string]any{
			"nodes": []any{map[string]any{"id": "f", "type": "filter", "config": map[string]any{"condition": "1 > 0"}}},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var report struct {
		Valid    bool     `json:"valid"`
		Warnings []string `json:"warnings"`
	}
	decodeData(t, rec, &report)
	if !report.Valid {
		t.Error("expected valid definition")
	}
	if len(report.Warnings) == 0 {
		t.Error("expected warning about missing trigger")
	}
}

// --- Execution Log Tests ---

func TestListWorkflowLogs(t *testing.T) {
	s := newTestServer(t)
	wf := s.addWorkflow(t, true)
	now := time.Now().UTC()

	s.addLog(t, wf.ID, domain.ExecutionStatusSuccess, now.Add(-3*time.Minute))
	failed := s.addLog(t, wf.ID, domain.ExecutionStatusFailed, now.Add(-2*time.Minute))
	s.addLog(t, wf.ID, domain.ExecutionStatusRunning, now.Add(-time.Minute))

	path := "/api/v1/workflows/" + wf.ID.String() + "/logs"

	rec := s.do(t, http.MethodGet, path, nil)
	var all []ExecutionLogSummary
	decodeData(t, rec, &all)
	if len(all) != 3 {
		t.Fatalf("got %d logs", len(all))
	}
	if all[0].Status != "running" {
		t.Errorf("logs not sorted newest first: %+v", all[0])
	}

	rec = s.do(t, http.MethodGet, path+"?status=failed", nil)
	var onlyFailed []ExecutionLogSummary
	decodeData(t, rec, &onlyFailed)
	if len(onlyFailed) != 1 || onlyFailed[0].ID != failed.ID || onlyFailed[0].ErrorMessage != "boom" {
		t.Errorf("failed logs = %+v", onlyFailed)
	}

	rec = s.do(t, http.MethodGet, path+"?limit=0", nil)
	var limited []ExecutionLogSummary
	decodeData(t, rec, &limited)
	if len(limited) != 1 {
		t.Errorf("limit=0 returned %d logs, want 1", len(limited))
	}

	rec = s.do(t, http.MethodGet, path+"?offset=-5&limit=500", nil)
	var clamped []ExecutionLogSummary
	decodeData(t, rec, &clamped)
	if len(clamped) != 3 {
		t.Errorf("clamped query returned %d logs", len(clamped))
	}

	rec = s.do(t, http.MethodGet, path+"?status=done", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: code = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Message != invalidStatusMessage {
		t.Errorf("message = %q", e.Message)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/workflows/"+uuid.NewString()+"/logs", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown workflow: code = %d", rec.Code)
	}
}

func TestCountAndGetLog(t *testing.T) {
	s := newTestServer(t)
	wf := s.addWorkflow(t, true)
	entry := s.addLog(t, wf.ID, domain.ExecutionStatusSuccess, time.Now().UTC())
	s.addLog(t, wf.ID, domain.ExecutionStatusFailed, time.Now().UTC())

	rec := s.do(t, http.MethodGet, "/api/v1/workflows/"+wf.ID.String()+"/logs/count?status=success", nil)
	var count CountResponse
	decodeData(t, rec, &count)
	if count.Count != 1 {
		t.Errorf("count = %d, want 1", count.Count)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/logs/"+entry.ID.String(), nil)
	var got domain.ExecutionLog
	decodeData(t, rec, &got)
	if got.ID != entry.ID || got.Status != domain.ExecutionStatusSuccess {
		t.Errorf("log = %+v", got)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/logs/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing log: code = %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/v1/logs/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: code = %d", rec.Code)
	}
}

func TestCleanupLogs(t *testing.T) {
	s := newTestServer(t)
	wf := s.addWorkflow(t, true)
	now := time.Now().UTC()

	s.addLog(t, wf.ID, domain.ExecutionStatusSuccess, now.AddDate(0, 0, -40))
	s.addLog(t, wf.ID, domain.ExecutionStatusFailed, now.AddDate(0, 0, -10))
	s.addLog(t, wf.ID, domain.ExecutionStatusSuccess, now)

	// dry run ничего не удаляет
	rec := s.do(t, http.MethodDelete, "/api/v1/logs/cleanup?dry_run=true", nil)
	var dry CleanupResponse
	decodeData(t, rec, &dry)
	if dry.DeletedCount != 1 || !dry.DryRun || dry.DaysToKeep != domain.DefaultRetentionDays {
		t.Errorf("dry run = %+v", dry)
	}
	if n, _ := s.logs.CountByWorkflow(context.Background(), wf.ID, ""); n != 3 {
		t.Fatalf("dry run deleted logs: %d left", n)
	}

	// По статусу по умолчанию 7 дней
	rec = s.do(t, http.MethodDelete, "/api/v1/logs/cleanup?status=failed", nil)
	var byStatus CleanupResponse
	decodeData(t, rec, &byStatus)
	if byStatus.DeletedCount != 1 || byStatus.DaysToKeep != domain.DefaultStatusRetentionDays {
		t.Errorf("cleanup by status = %+v", byStatus)
	}

	// days_to_keep приводится к 1..365
	rec = s.do(t, http.MethodDelete, "/api/v1/logs/cleanup?days_to_keep=1000", nil)
	var clamped CleanupResponse
	decodeData(t, rec, &clamped)
	if clamped.DaysToKeep != domain.MaxRetentionDays || clamped.DeletedCount != 0 {
		t.Errorf("clamped = %+v", clamped)
	}

	rec = s.do(t, http.MethodDelete, "/api/v1/logs/cleanup?days_to_keep=0", nil)
	var all CleanupResponse
	decodeData(t, rec, &all)
	if all.DaysToKeep != 1 || all.DeletedCount != 1 {
		t.Errorf("days_to_keep=0 = %+v", all)
	}

	if rec := s.do(t, http.MethodDelete, "/api/v1/logs/cleanup?days_to_keep=abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad days: code = %d", rec.Code)
	}
}

func TestGetLogStats(t *testing.T) {
	s := newTestServer(t)
	wf := s.addWorkflow(t, true)
	now := time.Now().UTC()

	s.addLog(t, wf.ID, domain.ExecutionStatusSuccess, now.Add(-time.Hour))
	s.addLog(t, wf.ID, domain.ExecutionStatusFailed, now.AddDate(0, 0, -3))
	s.addLog(t, wf.ID, domain.ExecutionStatusRunning, now.AddDate(0, 0, -20))

	rec := s.do(t, http.MethodGet, "/api/v1/logs/stats", nil)
	var stats domain.LogStats
	decodeData(t, rec, &stats)

	if stats.TotalLogs != 3 {
		t.Errorf("total = %d", stats.TotalLogs)
	}
	if stats.ByStatus["success"] != 1 || stats.ByStatus["failed"] != 1 || stats.ByStatus["running"] != 1 {
		t.Errorf("by_status = %v", stats.ByStatus)
	}
	if stats.ByAge["last_day"] != 1 || stats.ByAge["last_week"] != 2 || stats.ByAge["last_month"] != 3 {
		t.Errorf("by_age = %v", stats.ByAge)
	}
	if stats.OldestLog == nil {
		t.Error("oldest_log is nil")
	}
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(Recovery(logger), RequestID(logger), Logging())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/workflows", nil)
	generated := rec.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(generated); err != nil {
		t.Errorf("generated request id = %q", generated)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "req-42" {
		t.Errorf("request id = %q, want req-42", got)
	}
}
