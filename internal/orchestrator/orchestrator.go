package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/nodes"
	"github.com/shaiso/automateos/internal/telemetry"
)

// Engine выполняет workflow: узлы по порядку определения, один за другим.
type Engine struct {
	registry *nodes.Registry
	logger   *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	Registry *nodes.Registry
	Logger   *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = nodes.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// Registry возвращает реестр типов узлов.
func (e *Engine) Registry() *nodes.Registry {
	return e.registry
}

// Execute выполняет workflow над данными триггера.
//
// Узлы выполняются строго в порядке Definition.Nodes; связи на порядок
// не влияют. После каждого узла его выход сливается в контекст
// (engine.Merge). Первая ошибка узла прерывает выполнение.
//
// Все ошибки — *domain.WorkflowExecutionError, чьи Details содержат
// отчёт о падении (см. RunState.FailureReport). Для ошибки узла
// исходная *domain.NodeExecutionError доступна через errors.As.
func (e *Engine) Execute(ctx context.Context, wf *domain.Workflow, payload map[string]any) (*domain.ExecutionResult, error) {
	if wf == nil {
		return nil, ErrNilWorkflow
	}

	state := NewRunState(wf, payload)
	logger := telemetry.WithWorkflowID(e.logger, wf.ID.String())

	logger.Info("workflow execution started",
		"workflow_name", wf.Name,
		"nodes", len(wf.Definition.Nodes),
	)

	if len(wf.Definition.Nodes) == 0 {
		return nil, e.workflowFailure(logger, state, msgNoNodes, nil, ErrNoNodes)
	}

	for i := range wf.Definition.Nodes {
		spec := &wf.Definition.Nodes[i]

		// Между узлами проверяем таймаут задания
		if err := ctx.Err(); err != nil {
			return nil, e.workflowFailure(logger, state, err.Error(),
				map[string]any{"completed_nodes": state.Order()}, err)
		}

		if spec.ID == "" || spec.Type == "" {
			return nil, e.workflowFailure(logger, state, msgMissingNodeField,
				map[string]any{"node_definition": nodeDefinition(spec)}, ErrMissingNodeField)
		}

		result, err := e.runNode(ctx, logger, spec, state.Data)
		if err != nil {
			var nodeErr *domain.NodeExecutionError
			if errors.As(err, &nodeErr) {
				return nil, e.nodeFailure(logger, state, nodeErr)
			}
			return nil, e.workflowFailure(logger, state, err.Error(), nil, err)
		}

		state.Record(result)
	}

	result := state.Result(time.Now().UTC())
	telemetry.RecordWorkflow(string(domain.ExecutionStatusSuccess), result.CompletedAt.Sub(state.StartedAt))

	logger.Info("workflow execution completed",
		"nodes_executed", state.Completed(),
		"duration", result.CompletedAt.Sub(state.StartedAt),
	)

	return result, nil
}

// runNode создаёт узел из определения и выполняет его.
// Ошибки создания (неизвестный тип, неверный конфиг) относятся к узлу.
func (e *Engine) runNode(ctx context.Context, logger *slog.Logger, spec *domain.NodeSpec, data map[string]any) (*domain.NodeResult, error) {
	logger = telemetry.WithNodeID(logger, spec.ID)
	logger.Debug("executing node", "node_type", spec.Type)

	start := time.Now()

	node, err := e.registry.Create(spec.Type, spec.ID, spec.Config)
	if err != nil {
		telemetry.RecordNode(spec.Type, string(domain.NodeStatusFailed), time.Since(start))
		return nil, constructionError(spec, err)
	}

	result, err := nodes.SafeExecute(ctx, node, data)
	if err != nil {
		telemetry.RecordNode(spec.Type, string(domain.NodeStatusFailed), time.Since(start))
		return nil, err
	}

	telemetry.RecordNode(spec.Type, string(domain.NodeStatusSuccess), time.Since(start))
	logger.Debug("node executed", "duration", time.Since(start))

	return result, nil
}

// nodeFailure оборачивает ошибку узла в ошибку workflow с отчётом.
func (e *Engine) nodeFailure(logger *slog.Logger, state *RunState, nodeErr *domain.NodeExecutionError) error {
	now := time.Now().UTC()
	telemetry.RecordWorkflow(string(domain.ExecutionStatusFailed), now.Sub(state.StartedAt))

	logger.Warn("workflow execution failed at node",
		"node_id", nodeErr.NodeID,
		"node_type", nodeErr.NodeType,
		"error", nodeErr.Message,
	)

	return &domain.WorkflowExecutionError{
		WorkflowID: state.Workflow.ID,
		Message:    msgNodeFailed + nodeErr.Message,
		Details: state.FailureReport(failure{
			Type:     domain.ErrorTypeNodeExecution,
			Message:  nodeErr.Message,
			NodeID:   nodeErr.NodeID,
			NodeType: nodeErr.NodeType,
			Details:  nodeErr.ErrorDetails(),
		}, now),
		Err: nodeErr,
	}
}

// workflowFailure строит ошибку уровня workflow (не связанную с узлом).
func (e *Engine) workflowFailure(logger *slog.Logger, state *RunState, message string, details map[string]any, cause error) error {
	now := time.Now().UTC()
	telemetry.RecordWorkflow(string(domain.ExecutionStatusFailed), now.Sub(state.StartedAt))

	logger.Error("workflow execution failed", "error", message)

	return &domain.WorkflowExecutionError{
		WorkflowID: state.Workflow.ID,
		Message:    msgWorkflowFailed + message,
		Details: state.FailureReport(failure{
			Type:    domain.ErrorTypeWorkflowExecution,
			Message: message,
			Details: details,
		}, now),
		Err: cause,
	}
}

// constructionError приводит ошибку реестра к ошибке узла.
func constructionError(spec *domain.NodeSpec, err error) error {
	var nodeErr *domain.NodeExecutionError
	if errors.As(err, &nodeErr) {
		if nodeErr.NodeID == "" {
			nodeErr.NodeID = spec.ID
		}
		return nodeErr
	}

	message := fmt.Sprintf("Failed to create node %s: %v", spec.ID, err)
	if errors.Is(err, nodes.ErrUnknownNodeType) {
		message = fmt.Sprintf("Unsupported node type: %s", spec.Type)
	}

	return &domain.NodeExecutionError{
		NodeID:   spec.ID,
		NodeType: spec.Type,
		Message:  message,
		Details:  map[string]any{"node_type": spec.Type},
		Err:      err,
	}
}

func nodeDefinition(spec *domain.NodeSpec) map[string]any {
	return map[string]any{
		"id":     spec.ID,
		"type":   spec.Type,
		"config": spec.Config,
	}
}
