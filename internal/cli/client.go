package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	WebhookID   string         `json:"webhook_id"`
	WebhookURL  string         `json:"webhook_url"`
	Definition  map[string]any `json:"definition"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// WebhookResponse — ответ на вызов webhook.
type WebhookResponse struct {
	Message    string `json:"message"`
	JobID      string `json:"job_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	QueueType  string `json:"queue_type"`
}

// JobResponse — задание очереди из API.
type JobResponse struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Status      string         `json:"status"`
	CreatedAt   string         `json:"created_at,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	EndedAt     string         `json:"ended_at,omitempty"`
	Result      any            `json:"result,omitempty"`
	FailureInfo map[string]any `json:"failure_info,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// IsTerminal сообщает, что задание больше не изменится.
func (j *JobResponse) IsTerminal() bool {
	switch j.Status {
	case "finished", "failed", "not_found":
		return true
	default:
		return false
	}
}

// QueueInfoResponse — сводка по очереди.
type QueueInfoResponse struct {
	Name             string `json:"name"`
	Backend          string `json:"backend"`
	Length           int    `json:"length"`
	StartedJobCount  int64  `json:"started_job_count"`
	FinishedJobCount int64  `json:"finished_job_count"`
	FailedJobCount   int64  `json:"failed_job_count"`
}

// LogSummaryResponse — краткая запись журнала.
type LogSummaryResponse struct {
	ID           string `json:"id"`
	WorkflowID   string `json:"workflow_id"`
	Status       string `json:"status"`
	StartedAt    string `json:"started_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// LogResponse — полная запись журнала.
type LogResponse struct {
	LogSummaryResponse
	JobID   string         `json:"job_id,omitempty"`
	Payload map[string]any `json:"payload"`
	Result  map[string]any `json:"result,omitempty"`
}

// CleanupResponse — результат очистки журнала.
type CleanupResponse struct {
	DeletedCount int64  `json:"deleted_count"`
	DaysToKeep   int    `json:"days_to_keep"`
	Status       string `json:"status,omitempty"`
	DryRun       bool   `json:"dry_run"`
}

// LogStatsResponse — статистика журнала.
type LogStatsResponse struct {
	TotalLogs int64            `json:"total_logs"`
	ByStatus  map[string]int64 `json:"by_status"`
	ByAge     map[string]int64 `json:"by_age"`
	OldestLog string           `json:"oldest_log,omitempty"`
}

// --- Request types ---

// ListLogsOpts — параметры выборки журнала.
type ListLogsOpts struct {
	Status string
	Limit  int
	Offset int
}

// CleanupOpts — параметры очистки журнала.
type CleanupOpts struct {
	DaysToKeep int
	Status     string
	DryRun     bool
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для automateos API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает все workflow.
func (c *Client) ListWorkflows() ([]WorkflowResponse, error) {
	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", nil, &workflows)
	return workflows, err
}

// CreateWorkflow создаёт workflow из JSON описания.
func (c *Client) CreateWorkflow(spec json.RawMessage) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows", spec, &wf)
	return &wf, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+id, &wf)
	return &wf, err
}

// SetWorkflowActive включает или выключает workflow.
func (c *Client) SetWorkflowActive(id string, active bool) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.put("/api/v1/workflows/"+id, map[string]bool{"is_active": active}, &wf)
	return &wf, err
}

// DeleteWorkflow удаляет workflow.
func (c *Client) DeleteWorkflow(id string) error {
	return c.delete("/api/v1/workflows/" + id)
}

// --- Webhook, jobs, queue ---

// Trigger вызывает webhook с payload.
func (c *Client) Trigger(webhookID string, payload any) (*WebhookResponse, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	var resp WebhookResponse
	err := c.post("/webhook/"+url.PathEscape(webhookID), payload, &resp)
	return &resp, err
}

// GetJob возвращает статус задания.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+url.PathEscape(id), &job)
	return &job, err
}

// QueueInfo возвращает сводку по очереди.
func (c *Client) QueueInfo() (*QueueInfoResponse, error) {
	var info QueueInfoResponse
	err := c.get("/api/v1/queue", &info)
	return &info, err
}

// --- Execution logs ---

// ListLogs возвращает журнал выполнения workflow.
func (c *Client) ListLogs(workflowID string, opts ListLogsOpts) ([]LogSummaryResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var logs []LogSummaryResponse
	err := c.list("/api/v1/workflows/"+workflowID+"/logs", params, &logs)
	return logs, err
}

// CountLogs возвращает количество записей журнала workflow.
func (c *Client) CountLogs(workflowID, status string) (int64, error) {
	path := "/api/v1/workflows/" + workflowID + "/logs/count"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}

	var resp struct {
		Count int64 `json:"count"`
	}
	err := c.get(path, &resp)
	return resp.Count, err
}

// GetLog возвращает запись журнала.
func (c *Client) GetLog(id string) (*LogResponse, error) {
	var entry LogResponse
	err := c.get("/api/v1/logs/"+id, &entry)
	return &entry, err
}

// CleanupLogs удаляет старые записи журнала.
func (c *Client) CleanupLogs(opts CleanupOpts) (*CleanupResponse, error) {
	params := url.Values{}
	if opts.DaysToKeep > 0 {
		params.Set("days_to_keep", strconv.Itoa(opts.DaysToKeep))
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.DryRun {
		params.Set("dry_run", "true")
	}

	path := "/api/v1/logs/cleanup"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp CleanupResponse
	err := c.doData(http.MethodDelete, path, nil, &resp)
	return &resp, err
}

// LogStats возвращает статистику журнала.
func (c *Client) LogStats() (*LogStatsResponse, error) {
	var stats LogStatsResponse
	err := c.get("/api/v1/logs/stats", &stats)
	return &stats, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if er.Error.Details != nil {
		details, _ := json.Marshal(er.Error.Details)
		return fmt.Errorf("%s: %s %s", er.Error.Code, er.Error.Message, details)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
