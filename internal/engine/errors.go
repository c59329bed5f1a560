package engine

import "errors"

// Ошибки структуры определения workflow.
var (
	// ErrEmptyNodes — определение не содержит узлов.
	ErrEmptyNodes = errors.New("workflow definition has no nodes")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrEmptyNodeType — узел не имеет типа.
	ErrEmptyNodeType = errors.New("node has empty type")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownConnection — связь ссылается на несуществующий узел.
	ErrUnknownConnection = errors.New("connection references unknown node")

	// ErrInvalidDefinition — определение не разбирается как JSON.
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// Ошибки вычисления условий.
var (
	// ErrEmptyCondition — пустое условие.
	ErrEmptyCondition = errors.New("condition is empty")

	// ErrUnsafeCondition — условие содержит запрещённые символы.
	ErrUnsafeCondition = errors.New("condition contains unsafe characters")

	// ErrMalformedCondition — условие не соответствует грамматике.
	ErrMalformedCondition = errors.New("malformed condition")

	// ErrNotComparable — операнды нельзя сравнить как числа.
	ErrNotComparable = errors.New("operands are not comparable")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
