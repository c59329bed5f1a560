package nodes

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр типов узлов.
//
// Отображает тег типа в конструктор. Новый тип узла — новая запись
// в реестре. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[string]Constructor),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными узлами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(TypeWebhook, NewTriggerNode)
	r.Register(TypeHTTPRequest, NewHTTPRequestNode)
	r.Register(TypeFilter, NewFilterNode)

	return r
}

// Register регистрирует конструктор для типа.
// Если тип уже зарегистрирован, конструктор будет перезаписан.
func (r *Registry) Register(nodeType string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[nodeType] = ctor
}

// Create создаёт и валидирует узел.
// Возвращает ErrUnknownNodeType, если тип не зарегистрирован,
// или *domain.NodeExecutionError при ошибке конфигурации.
func (r *Registry) Create(nodeType, id string, config map[string]any) (Node, error) {
	r.mu.RLock()
	ctor, exists := r.ctors[nodeType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}
	return ctor(id, config)
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.ctors[nodeType]
	return exists
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count возвращает количество зарегистрированных типов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ctors)
}
