package orchestrator

import (
	"errors"
	"fmt"

	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/engine"
	"github.com/shaiso/automateos/internal/nodes"
)

// Сообщения валидации.
const (
	msgNoNodesDefined   = "Workflow must have at least one node"
	msgNoTrigger        = "Workflow has no webhook trigger node"
	msgMultipleTriggers = "Workflow has multiple trigger nodes"
	unknownNodeKey      = "unknown"
)

// NodeValidation — результат проверки одного узла.
type NodeValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidationResult — отчёт о проверке определения workflow.
//
// NodeValidations индексирован по id узла; узлы без id попадают
// под ключ "unknown".
type ValidationResult struct {
	Valid           bool                       `json:"valid"`
	Errors          []string                   `json:"errors"`
	Warnings        []string                   `json:"warnings"`
	NodeValidations map[string]*NodeValidation `json:"node_validations"`
}

func newNodeValidation() *NodeValidation {
	return &NodeValidation{Valid: true, Errors: []string{}, Warnings: []string{}}
}

func (v *NodeValidation) addError(msg string) {
	v.Valid = false
	v.Errors = append(v.Errors, msg)
}

// Validate проверяет определение без выполнения.
//
// Каждый узел создаётся через реестр, поэтому ошибки конфигурации
// обнаруживаются так же, как при запуске. Отсутствие или несколько
// webhook-узлов, повторы id и висячие связи — предупреждения.
func (e *Engine) Validate(def *domain.Definition) *ValidationResult {
	res := &ValidationResult{
		Valid:           true,
		Errors:          []string{},
		Warnings:        []string{},
		NodeValidations: map[string]*NodeValidation{},
	}

	if def == nil || len(def.Nodes) == 0 {
		res.Valid = false
		res.Errors = append(res.Errors, msgNoNodesDefined)
		return res
	}

	seen := make(map[string]bool, len(def.Nodes))
	triggers := 0

	for i := range def.Nodes {
		spec := &def.Nodes[i]
		nv := newNodeValidation()

		for _, verr := range engine.CheckNode(spec, seen) {
			if errors.Is(verr.Err, engine.ErrDuplicateNodeID) {
				nv.Warnings = append(nv.Warnings, verr.Message)
				res.Warnings = append(res.Warnings, fmt.Sprintf("Node %s: %s", spec.ID, verr.Message))
				continue
			}
			nv.addError(verr.Message)
		}

		if spec.Type != "" {
			e.checkNodeConfig(spec, nv)
		}

		if spec.Type == nodes.TypeWebhook {
			triggers++
		}

		key := spec.ID
		if key == "" {
			key = unknownNodeKey
		}
		res.NodeValidations[key] = nv

		if !nv.Valid {
			res.Valid = false
			for _, msg := range nv.Errors {
				res.Errors = append(res.Errors, fmt.Sprintf("Node %s: %s", key, msg))
			}
		}
	}

	switch {
	case triggers == 0:
		res.Warnings = append(res.Warnings, msgNoTrigger)
	case triggers > 1:
		res.Warnings = append(res.Warnings, msgMultipleTriggers)
	}

	for _, verr := range engine.CheckConnections(def) {
		res.Warnings = append(res.Warnings, verr.Message)
	}

	return res
}

// checkNodeConfig проверяет тип узла и его конфигурацию.
func (e *Engine) checkNodeConfig(spec *domain.NodeSpec, nv *NodeValidation) {
	if !e.registry.Has(spec.Type) {
		nv.addError(fmt.Sprintf("Unsupported node type: %s", spec.Type))
		return
	}

	if _, err := e.registry.Create(spec.Type, spec.ID, spec.Config); err != nil {
		msg := err.Error()
		var nodeErr *domain.NodeExecutionError
		if errors.As(err, &nodeErr) {
			msg = nodeErr.Message
		}
		nv.addError(fmt.Sprintf("Configuration error: %s", msg))
	}
}
