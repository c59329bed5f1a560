package engine

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/automateos/internal/domain"
)

// ParseDefinition разбирает определение workflow из JSON.
//
// Структурная проверка не выполняется: определение с пустым списком
// узлов или узлами без id разбирается успешно, чтобы валидация
// могла вернуть полный отчёт.
func ParseDefinition(data []byte) (*domain.Definition, error) {
	var def domain.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return &def, nil
}

// CheckNode возвращает все структурные ошибки узла:
// отсутствие id, отсутствие type, повтор id.
// seen — уже встреченные id узлов; id узла добавляется в seen.
func CheckNode(node *domain.NodeSpec, seen map[string]bool) []*ValidationError {
	var errs []*ValidationError

	if node.ID == "" {
		errs = append(errs, NewValidationError("", "id",
			"Node missing required 'id' field", ErrEmptyNodeID))
	}

	if node.Type == "" {
		errs = append(errs, NewValidationError(node.ID, "type",
			"Node missing required 'type' field", ErrEmptyNodeType))
	}

	if node.ID != "" {
		if seen[node.ID] {
			errs = append(errs, NewValidationError(node.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID))
		}
		seen[node.ID] = true
	}

	return errs
}

// CheckConnections проверяет, что связи ссылаются на существующие узлы.
// Связи не влияют на порядок выполнения, поэтому ошибки здесь —
// предупреждения для редактора, а не причина отклонить workflow.
func CheckConnections(def *domain.Definition) []*ValidationError {
	ids := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.ID != "" {
			ids[n.ID] = true
		}
	}

	var errs []*ValidationError
	for _, c := range def.Connections {
		for _, end := range []string{c.Source, c.Target} {
			if !ids[end] {
				errs = append(errs, NewValidationError(end, "connections",
					fmt.Sprintf("connection %s → %s references unknown node %q", c.Source, c.Target, end),
					ErrUnknownConnection))
			}
		}
	}
	return errs
}
