package nodes

import (
	"context"
	"strings"
)

// TypeWebhook — тег узла-триггера.
const TypeWebhook = "webhook"

// TriggerNode — узел-триггер webhook.
//
// Нормализует входящий запрос в единый вид для следующих узлов.
//
// Конфигурация:
//
//	{"method": "POST"}
//
// Вход (данные триггера): payload, headers, method, url, timestamp.
//
// Выход:
//
//	{
//	    "trigger": {
//	        "type": "webhook", "method": "POST", "url": "...",
//	        "timestamp": "...", "payload": {...}, "headers": {...}
//	    },
//	    "raw_payload": {...}
//	}
type TriggerNode struct {
	base
	method string
}

// NewTriggerNode создаёт и валидирует TriggerNode.
func NewTriggerNode(id string, config map[string]any) (Node, error) {
	n := &TriggerNode{base: newBase(id, TypeWebhook, config)}
	if err := n.ValidateConfig(); err != nil {
		return nil, err
	}
	return n, nil
}

// ValidateConfig проверяет наличие и допустимость method.
func (n *TriggerNode) ValidateConfig() error {
	if err := n.requireField(configMethod); err != nil {
		return err
	}
	method, err := n.checkMethod(n.config[configMethod])
	if err != nil {
		return err
	}
	n.method = method
	return nil
}

// Execute собирает данные триггера.
func (n *TriggerNode) Execute(_ context.Context, input map[string]any) (map[string]any, error) {
	payload, ok := input["payload"]
	if !ok || payload == nil {
		payload = map[string]any{}
	}

	method, _ := input["method"].(string)
	if method == "" {
		method = "POST"
	}
	url, _ := input["url"].(string)
	timestamp, _ := input["timestamp"].(string)

	headers := map[string]any{}
	switch h := input["headers"].(type) {
	case map[string]any:
		for k, v := range h {
			headers[k] = v
		}
	case map[string]string:
		for k, v := range h {
			headers[k] = v
		}
	}

	return map[string]any{
		"trigger": map[string]any{
			"type":      TypeWebhook,
			"method":    method,
			"url":       url,
			"timestamp": timestamp,
			"payload":   payload,
			"headers":   headers,
		},
		"raw_payload": payload,
	}, nil
}

// SupportsMethod сообщает, принимает ли триггер данный HTTP метод.
// Используется webhook-эндпоинтом.
func (n *TriggerNode) SupportsMethod(method string) bool {
	return strings.EqualFold(n.method, method)
}
