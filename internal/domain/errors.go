package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Типы ошибок выполнения, как они попадают в error.type отчёта.
const (
	ErrorTypeNodeExecution     = "node_execution_error"
	ErrorTypeWorkflowExecution = "workflow_execution_error"
)

// ExecutionError — общий интерфейс ошибок выполнения.
//
// Реализации: *NodeExecutionError (ошибка конкретного узла) и
// *WorkflowExecutionError (ошибка уровня workflow). Оба несут
// структурированные детали, которые сохраняются в журнал.
type ExecutionError interface {
	error
	Kind() string
	ErrorDetails() map[string]any
}

// NodeExecutionError — ошибка конфигурации или выполнения узла.
type NodeExecutionError struct {
	NodeID   string
	NodeType string
	Message  string
	Details  map[string]any

	// Err — исходная ошибка (для errors.Is/As).
	Err error
}

func (e *NodeExecutionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %s (%s): %s", e.NodeID, e.NodeType, e.Message)
	}
	return fmt.Sprintf("node %s: %s", e.NodeType, e.Message)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// Kind возвращает тип ошибки для отчёта.
func (e *NodeExecutionError) Kind() string {
	return ErrorTypeNodeExecution
}

// ErrorDetails возвращает детали (никогда не nil).
func (e *NodeExecutionError) ErrorDetails() map[string]any {
	if e.Details == nil {
		return map[string]any{}
	}
	return e.Details
}

// NewNodeError создаёт NodeExecutionError.
func NewNodeError(nodeID, nodeType, message string, details map[string]any) *NodeExecutionError {
	return &NodeExecutionError{
		NodeID:   nodeID,
		NodeType: nodeType,
		Message:  message,
		Details:  details,
	}
}

// WorkflowExecutionError — ошибка уровня workflow.
//
// Details содержит отчёт о падении: workflow_id, status, node_results,
// trigger_payload и error{type, message, node_id, node_type, details}.
type WorkflowExecutionError struct {
	WorkflowID uuid.UUID
	Message    string
	Details    map[string]any

	Err error
}

func (e *WorkflowExecutionError) Error() string {
	return fmt.Sprintf("workflow %s: %s", e.WorkflowID, e.Message)
}

func (e *WorkflowExecutionError) Unwrap() error {
	return e.Err
}

// Kind возвращает тип ошибки для отчёта.
func (e *WorkflowExecutionError) Kind() string {
	return ErrorTypeWorkflowExecution
}

// ErrorDetails возвращает детали (никогда не nil).
func (e *WorkflowExecutionError) ErrorDetails() map[string]any {
	if e.Details == nil {
		return map[string]any{}
	}
	return e.Details
}
