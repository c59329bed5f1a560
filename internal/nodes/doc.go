// Package nodes содержит реализации типов узлов workflow.
//
// # Обзор
//
// Узел — один типизированный шаг workflow. Каждый узел:
//   - Создаётся из NodeSpec через Registry (конфигурация проверяется сразу)
//   - Получает текущий контекст выполнения как вход
//   - Возвращает выход, который оркестратор сливает в контекст
//
// # Интерфейс Node
//
//	type Node interface {
//	    ID() string
//	    Type() string
//	    ValidateConfig() error
//	    Execute(ctx context.Context, input map[string]any) (map[string]any, error)
//	}
//
// # Registry
//
// Registry — фабрика узлов по тегу типа:
//
//	registry := nodes.DefaultRegistry()  // webhook, http_request, filter
//	node, err := registry.Create("filter", "check", map[string]any{
//	    "condition": "{{payload.amount}} > 100",
//	})
//	if errors.Is(err, nodes.ErrUnknownNodeType) {
//	    // неизвестный тип
//	}
//
// # Типы узлов
//
// ## Webhook (trigger.go)
//
// Нормализует данные входящего запроса в {trigger: {...}, raw_payload}.
//
// ## HTTP Request (http.go)
//
// Выполняет один HTTP запрос с таймаутом (30 секунд по умолчанию).
// Статусы 4xx/5xx не считаются ошибкой узла.
//
// ## Filter (filter.go)
//
// Вычисляет условие (engine.Evaluate) и прерывает workflow,
// если результат не совпал с continue_on.
//
// # Обработка ошибок
//
// Все ошибки узлов — *domain.NodeExecutionError с node_id, node_type,
// message и details. SafeExecute (execute.go) оборачивает в неё любые
// другие ошибки и panic. Для errors.Is доступны:
//
//	var (
//	    ErrUnknownNodeType  // тип не зарегистрирован
//	    ErrInvalidConfig    // неверная конфигурация
//	    ErrConditionNotMet  // фильтр остановил выполнение
//	    ErrRequestTimeout   // HTTP таймаут
//	    ErrConnection       // HTTP ошибка соединения
//	    ErrRequest          // прочая HTTP ошибка
//	)
//
// Retry не выполняется: ошибка узла завершает запуск.
//
// # Файлы пакета
//
//   - node.go     — интерфейс Node, общие поля, ошибки, хелперы конфига
//   - registry.go — Registry
//   - execute.go  — SafeExecute
//   - trigger.go  — TriggerNode
//   - http.go     — HTTPRequestNode
//   - filter.go   — FilterNode
package nodes
