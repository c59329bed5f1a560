package orchestrator

import (
	"time"

	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/engine"
)

// RunState — состояние одного выполнения workflow.
//
// Создаётся на каждый вызов Execute и не разделяется между запусками.
// Узлы выполняются строго последовательно, поэтому блокировки не нужны.
type RunState struct {
	Workflow  *domain.Workflow
	Payload   map[string]any
	StartedAt time.Time

	// Data — текущий контекст выполнения, растёт после каждого узла.
	Data map[string]any

	// Results — результаты успешно выполненных узлов.
	Results domain.NodeResults

	// order — порядок выполнения узлов (для логов и статистики).
	order []string
}

// NewRunState создаёт состояние запуска.
func NewRunState(wf *domain.Workflow, payload map[string]any) *RunState {
	if payload == nil {
		payload = map[string]any{}
	}
	return &RunState{
		Workflow:  wf,
		Payload:   payload,
		StartedAt: time.Now().UTC(),
		Data:      engine.NewData(payload),
		Results:   make(domain.NodeResults),
	}
}

// Record сохраняет результат узла и сливает его выход в контекст.
func (s *RunState) Record(result *domain.NodeResult) {
	s.Results[result.NodeID] = result
	s.order = append(s.order, result.NodeID)
	s.Data = engine.Merge(s.Data, result.NodeID, result.Data)
}

// Completed возвращает количество выполненных узлов.
func (s *RunState) Completed() int {
	return len(s.order)
}

// Order возвращает id выполненных узлов в порядке выполнения.
func (s *RunState) Order() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Result строит итог успешного выполнения.
func (s *RunState) Result(completedAt time.Time) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		WorkflowID:     s.Workflow.ID,
		WorkflowName:   s.Workflow.Name,
		Status:         "success",
		StartedAt:      s.StartedAt,
		CompletedAt:    completedAt,
		TriggerPayload: s.Payload,
		NodeResults:    s.Results,
		FinalData:      s.Data,
	}
}

// failure описывает ошибку для отчёта о падении.
type failure struct {
	Type     string
	Message  string
	NodeID   string
	NodeType string
	Details  map[string]any
}

// FailureReport строит детали WorkflowExecutionError.
//
// Формат:
//
//	{
//	    "workflow_id": "...", "workflow_name": "...", "status": "failed",
//	    "started_at": "...", "failed_at": "...",
//	    "error": {"type": "...", "message": "...", "node_id": "...", "node_type": "...", "details": {...}},
//	    "node_results": {...},
//	    "trigger_payload": {...}
//	}
//
// node_id и node_type присутствуют только для ошибок узлов.
func (s *RunState) FailureReport(f failure, failedAt time.Time) map[string]any {
	details := f.Details
	if details == nil {
		details = map[string]any{}
	}

	errInfo := map[string]any{
		"type":    f.Type,
		"message": f.Message,
		"details": details,
	}
	if f.Type == domain.ErrorTypeNodeExecution {
		errInfo["node_id"] = f.NodeID
		errInfo["node_type"] = f.NodeType
	}

	return map[string]any{
		"workflow_id":     s.Workflow.ID.String(),
		"workflow_name":   s.Workflow.Name,
		"status":          "failed",
		"started_at":      s.StartedAt.Format(time.RFC3339Nano),
		"failed_at":       failedAt.Format(time.RFC3339Nano),
		"error":           errInfo,
		"node_results":    s.Results.Map(),
		"trigger_payload": s.Payload,
	}
}
