package domain

import (
	"time"

	"github.com/google/uuid"
)

// NodeResult — нормализованный конверт результата одного узла.
type NodeResult struct {
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Status     NodeStatus     `json:"status"`
	Data       map[string]any `json:"data"`
	ExecutedAt time.Time      `json:"executed_at"`
}

// Map возвращает результат в виде map для отчётов и журнала.
func (r *NodeResult) Map() map[string]any {
	return map[string]any{
		"node_id":     r.NodeID,
		"node_type":   r.NodeType,
		"status":      string(r.Status),
		"data":        r.Data,
		"executed_at": r.ExecutedAt.Format(time.RFC3339Nano),
	}
}

// NodeResults — результаты узлов по их id.
type NodeResults map[string]*NodeResult

// Map возвращает результаты в виде map.
func (rs NodeResults) Map() map[string]any {
	out := make(map[string]any, len(rs))
	for id, r := range rs {
		out[id] = r.Map()
	}
	return out
}

// ExecutionResult — итог успешного выполнения workflow.
type ExecutionResult struct {
	WorkflowID     uuid.UUID      `json:"workflow_id"`
	WorkflowName   string         `json:"workflow_name"`
	Status         string         `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    time.Time      `json:"completed_at"`
	TriggerPayload map[string]any `json:"trigger_payload"`
	NodeResults    NodeResults    `json:"node_results"`
	FinalData      map[string]any `json:"final_data"`
}

// Map возвращает результат в виде map (так он хранится в журнале).
func (r *ExecutionResult) Map() map[string]any {
	return map[string]any{
		"workflow_id":     r.WorkflowID.String(),
		"workflow_name":   r.WorkflowName,
		"status":          r.Status,
		"started_at":      r.StartedAt.Format(time.RFC3339Nano),
		"completed_at":    r.CompletedAt.Format(time.RFC3339Nano),
		"trigger_payload": r.TriggerPayload,
		"node_results":    r.NodeResults.Map(),
		"final_data":      r.FinalData,
	}
}
