package domain

// JobStatus — статус задания в очереди.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → FINISHED
//	                 ↘ FAILED
//
// NOT_FOUND не хранится: его возвращает очередь для неизвестного id.
type JobStatus string

const (
	// JobStatusQueued — задание поставлено в очередь.
	JobStatusQueued JobStatus = "queued"

	// JobStatusRunning — задание взято воркером.
	JobStatusRunning JobStatus = "running"

	// JobStatusFinished — workflow выполнен успешно.
	JobStatusFinished JobStatus = "finished"

	// JobStatusFailed — выполнение завершилось ошибкой.
	JobStatusFailed JobStatus = "failed"

	// JobStatusNotFound — задание не найдено (истёк TTL или неверный id).
	JobStatusNotFound JobStatus = "not_found"
)

// rank задаёт порядок статусов: переходы возможны только вперёд.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 1
	case JobStatusRunning:
		return 2
	case JobStatusFinished, JobStatusFailed:
		return 3
	default:
		return 0
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusFinished, JobStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет, что переход s → next идёт строго вперёд.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if next == JobStatusNotFound || s == JobStatusNotFound {
		return false
	}
	return next.rank() > s.rank()
}

// ExecutionStatus — статус записи журнала выполнения.
//
// Жизненный цикл:
//
//	RUNNING → SUCCESS
//	        ↘ FAILED
type ExecutionStatus string

const (
	// ExecutionStatusRunning — запись создана, workflow выполняется.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusSuccess — все узлы выполнены.
	ExecutionStatusSuccess ExecutionStatus = "success"

	// ExecutionStatusFailed — выполнение прервано ошибкой.
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// ParseExecutionStatus парсит строку в ExecutionStatus.
// Второе значение false, если строка не является известным статусом.
func ParseExecutionStatus(s string) (ExecutionStatus, bool) {
	switch ExecutionStatus(s) {
	case ExecutionStatusRunning, ExecutionStatusSuccess, ExecutionStatusFailed:
		return ExecutionStatus(s), true
	default:
		return "", false
	}
}

// NodeStatus — результат выполнения одного узла.
type NodeStatus string

const (
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
)
