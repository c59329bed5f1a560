package worker

import "errors"

// Ошибки воркера.
var (
	// ErrWorkflowNotFound — workflow задания не найден в БД.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowInactive — workflow деактивирован после постановки задания.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
