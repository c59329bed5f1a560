package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionLog — запись журнала об одном запуске workflow.
//
// Создаётся воркером в статусе running перед выполнением и
// обновляется ровно один раз по завершении (success или failed).
// Удаляется только внешним процессом очистки.
type ExecutionLog struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// WorkflowID — выполненный workflow.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// JobID — задание очереди, породившее запуск.
	JobID string `json:"job_id,omitempty"`

	// Status — running, success или failed.
	Status ExecutionStatus `json:"status"`

	// Payload — данные триггера.
	Payload map[string]any `json:"payload"`

	// Result — ExecutionResult при успехе или детали ошибки при падении.
	Result map[string]any `json:"result,omitempty"`

	// ErrorMessage — текст ошибки для failed.
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExecutionLogPatch — единственное обновление записи по завершении.
type ExecutionLogPatch struct {
	Status       ExecutionStatus
	Result       map[string]any
	ErrorMessage string
	CompletedAt  time.Time
}

// NewExecutionLog создаёт запись в статусе running.
func NewExecutionLog(workflowID uuid.UUID, jobID string, payload map[string]any) *ExecutionLog {
	return &ExecutionLog{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		JobID:      jobID,
		Status:     ExecutionStatusRunning,
		Payload:    payload,
		StartedAt:  time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если запуск ещё не завершён.
func (l *ExecutionLog) Duration() time.Duration {
	if l.CompletedAt == nil {
		return 0
	}
	return l.CompletedAt.Sub(l.StartedAt)
}

// IsFinished возвращает true, если запись уже завершена.
func (l *ExecutionLog) IsFinished() bool {
	return l.Status.IsTerminal()
}

// Apply применяет patch к записи.
func (l *ExecutionLog) Apply(p ExecutionLogPatch) {
	completed := p.CompletedAt
	l.Status = p.Status
	l.Result = p.Result
	l.ErrorMessage = p.ErrorMessage
	l.CompletedAt = &completed
}

// SuccessPatch — patch для успешного завершения.
func SuccessPatch(result map[string]any) ExecutionLogPatch {
	return ExecutionLogPatch{
		Status:      ExecutionStatusSuccess,
		Result:      result,
		CompletedAt: time.Now().UTC(),
	}
}

// FailurePatch — patch для завершения с ошибкой.
// Детали ExecutionError попадают в Result.
func FailurePatch(err error) ExecutionLogPatch {
	info := FailureFromError(err)
	return ExecutionLogPatch{
		Status:       ExecutionStatusFailed,
		Result:       info.Details,
		ErrorMessage: info.Message,
		CompletedAt:  time.Now().UTC(),
	}
}

// ExecutionLogFilter — параметры выборки журнала.
type ExecutionLogFilter struct {
	WorkflowID uuid.UUID
	Status     ExecutionStatus
	Limit      int
	Offset     int
}

// Границы параметров выборки и очистки журнала.
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 100

	DefaultRetentionDays       = 30
	DefaultStatusRetentionDays = 7
	MinRetentionDays           = 1
	MaxRetentionDays           = 365
)

// Normalize приводит Limit к 1..100 (0 означает значение по умолчанию)
// и Offset к неотрицательному.
func (f *ExecutionLogFilter) Normalize() {
	switch {
	case f.Limit == 0:
		f.Limit = DefaultLogLimit
	case f.Limit < 1:
		f.Limit = 1
	case f.Limit > MaxLogLimit:
		f.Limit = MaxLogLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ClampRetentionDays приводит срок хранения к 1..365 дням.
func ClampRetentionDays(days int) int {
	if days < MinRetentionDays {
		return MinRetentionDays
	}
	if days > MaxRetentionDays {
		return MaxRetentionDays
	}
	return days
}

// CleanupFilter — параметры очистки журнала.
type CleanupFilter struct {
	// Before — удаляются записи, начатые раньше этого момента.
	Before time.Time

	// Status — если задан, удаляются только записи с этим статусом.
	Status ExecutionStatus

	// DryRun — только посчитать записи, не удаляя.
	DryRun bool
}

// NewCleanupFilter создаёт фильтр "старше days дней".
func NewCleanupFilter(now time.Time, days int, status ExecutionStatus, dryRun bool) CleanupFilter {
	days = ClampRetentionDays(days)
	return CleanupFilter{
		Before: now.Add(-time.Duration(days) * 24 * time.Hour),
		Status: status,
		DryRun: dryRun,
	}
}

// LogStats — статистика журнала выполнения.
type LogStats struct {
	TotalLogs int64            `json:"total_logs"`
	ByStatus  map[string]int64 `json:"by_status"`
	ByAge     map[string]int64 `json:"by_age"`
	OldestLog *time.Time       `json:"oldest_log"`
}

// StatsWindows — окна статистики по возрасту записей.
var StatsWindows = []struct {
	Label string
	Age   time.Duration
}{
	{"last_day", 24 * time.Hour},
	{"last_week", 7 * 24 * time.Hour},
	{"last_month", 30 * 24 * time.Hour},
}
