package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/automateos/internal/engine"
)

// TypeFilter — тег узла-фильтра.
const TypeFilter = "filter"

// Ключи конфигурации фильтра.
const (
	configCondition  = "condition"
	configContinueOn = "continue_on"
)

// FilterNode — узел условного продолжения.
//
// Вычисляет условие над текущим контекстом. Если результат не совпадает
// с continue_on, выполнение workflow прерывается ошибкой узла.
//
// Конфигурация:
//
//	{"condition": "{{payload.amount}} > 100", "continue_on": true}
//
// Выход:
//
//	{
//	    "condition": "{{payload.amount}} > 100",
//	    "processed_condition": "150 > 100",
//	    "result": true,
//	    "continue_on": true,
//	    "should_continue": true,
//	    "input_data": {...}
//	}
type FilterNode struct {
	base

	condition  string
	continueOn bool
}

// NewFilterNode создаёт и валидирует FilterNode.
func NewFilterNode(id string, config map[string]any) (Node, error) {
	n := &FilterNode{base: newBase(id, TypeFilter, config)}
	if err := n.ValidateConfig(); err != nil {
		return nil, err
	}
	return n, nil
}

// ValidateConfig проверяет, что condition — непустая строка.
func (n *FilterNode) ValidateConfig() error {
	if err := n.requireField(configCondition); err != nil {
		return err
	}

	cond, ok := n.config[configCondition].(string)
	if !ok || strings.TrimSpace(cond) == "" {
		return n.fail("Condition must be a non-empty string",
			map[string]any{"condition": n.config[configCondition]}, ErrInvalidConfig)
	}

	if raw, ok := n.config[configContinueOn]; ok {
		if _, isBool := raw.(bool); !isBool {
			return n.fail("continue_on must be a boolean",
				map[string]any{"continue_on": raw}, ErrInvalidConfig)
		}
	}

	n.condition = cond
	n.continueOn = GetConfigBool(n.config, configContinueOn, true)
	return nil
}

// Execute вычисляет условие.
func (n *FilterNode) Execute(_ context.Context, input map[string]any) (map[string]any, error) {
	processed := engine.ResolveCondition(n.condition, input)

	result, err := engine.Evaluate(processed, input)
	if err != nil {
		return nil, n.fail(fmt.Sprintf("Error evaluating filter condition: %v", err),
			map[string]any{"condition": n.condition, "error": err.Error()}, err)
	}

	shouldContinue := result == n.continueOn
	output := map[string]any{
		"condition":           n.condition,
		"processed_condition": processed,
		"result":              result,
		"continue_on":         n.continueOn,
		"should_continue":     shouldContinue,
		"input_data":          input,
	}

	if !shouldContinue {
		return nil, n.fail(fmt.Sprintf("Filter condition not met: %s = %v", processed, result),
			output, ErrConditionNotMet)
	}
	return output, nil
}
