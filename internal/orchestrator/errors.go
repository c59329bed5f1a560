package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrNoNodes — в определении workflow нет узлов.
	ErrNoNodes = errors.New("workflow has no nodes")

	// ErrMissingNodeField — у узла нет id или type.
	ErrMissingNodeField = errors.New("node missing id or type")

	// ErrNilWorkflow — Execute вызван без workflow.
	ErrNilWorkflow = errors.New("workflow is nil")
)

// Сообщения ошибок уровня workflow, как они попадают в журнал.
const (
	msgNoNodes          = "Workflow has no nodes defined"
	msgMissingNodeField = "Node missing required id or type"
	msgNodeFailed       = "Node execution failed: "
	msgWorkflowFailed   = "Workflow execution failed: "
)
