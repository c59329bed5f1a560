package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/automateos/internal/domain"
)

// Ошибки узлов.
var (
	// ErrUnknownNodeType — тип узла не найден в реестре.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidConfig — невалидная конфигурация узла.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrConditionNotMet — условие фильтра не совпало с continue_on.
	ErrConditionNotMet = errors.New("filter condition not met")

	// ErrRequestTimeout — HTTP запрос превысил таймаут.
	ErrRequestTimeout = errors.New("http request timeout")

	// ErrConnection — не удалось установить соединение.
	ErrConnection = errors.New("http connection failed")

	// ErrRequest — прочая транспортная ошибка HTTP запроса.
	ErrRequest = errors.New("http request failed")
)

// allowedMethods — фиксированный набор HTTP методов для webhook и http_request.
var allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

// Node — интерфейс для типов узлов.
//
// Каждый тип узла (webhook, http_request, filter) реализует этот интерфейс.
// Экземпляр создаётся из NodeSpec через Registry и живёт один запуск.
type Node interface {
	// ID возвращает идентификатор узла из определения.
	ID() string

	// Type возвращает тег типа узла.
	Type() string

	// ValidateConfig проверяет конфигурацию без выполнения.
	// Возвращает *domain.NodeExecutionError.
	ValidateConfig() error

	// Execute выполняет узел над текущим контекстом и возвращает выход.
	// Ошибки выполнения — *domain.NodeExecutionError.
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Constructor создаёт узел из id и конфигурации.
// Реализации вызывают ValidateConfig, так что ошибка конфигурации
// обнаруживается при создании, а не при выполнении.
type Constructor func(id string, config map[string]any) (Node, error)

// base — общие поля всех узлов.
type base struct {
	id       string
	nodeType string
	config   map[string]any
}

func newBase(id, nodeType string, config map[string]any) base {
	if config == nil {
		config = make(map[string]any)
	}
	return base{id: id, nodeType: nodeType, config: config}
}

// ID возвращает идентификатор узла.
func (b *base) ID() string { return b.id }

// Type возвращает тег типа узла.
func (b *base) Type() string { return b.nodeType }

// Config возвращает конфигурацию узла.
func (b *base) Config() map[string]any { return b.config }

// fail создаёт NodeExecutionError от имени узла.
func (b *base) fail(message string, details map[string]any, cause error) *domain.NodeExecutionError {
	err := domain.NewNodeError(b.id, b.nodeType, message, details)
	err.Err = cause
	return err
}

// requireField возвращает ошибку, если ключа нет в конфиге.
func (b *base) requireField(field string) error {
	if _, ok := b.config[field]; !ok {
		return b.fail(fmt.Sprintf("Missing required field: %s", field),
			map[string]any{"missing_field": field}, ErrInvalidConfig)
	}
	return nil
}

// checkMethod проверяет HTTP метод по фиксированному набору.
func (b *base) checkMethod(raw any) (string, error) {
	s, _ := raw.(string)
	method := strings.ToUpper(strings.TrimSpace(s))
	if !isAllowedMethod(method) {
		return "", b.fail(fmt.Sprintf("Invalid HTTP method: %s", method),
			map[string]any{"invalid_method": method, "allowed_methods": AllowedMethods()},
			ErrInvalidConfig)
	}
	return method, nil
}

// AllowedMethods возвращает допустимые HTTP методы.
func AllowedMethods() []string {
	out := make([]string, len(allowedMethods))
	copy(out, allowedMethods)
	return out
}

func isAllowedMethod(method string) bool {
	for _, m := range allowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigFloat извлекает числовое значение из конфига.
func GetConfigFloat(config map[string]any, key string) float64 {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case float64:
			return n
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigMapString извлекает map[string]string из конфига.
// Нестроковые значения приводятся к строке.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string, len(m))
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				} else if val != nil {
					result[k] = fmt.Sprint(val)
				}
			}
			return result
		}
	}
	return nil
}
