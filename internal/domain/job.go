package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition — попытка перевести задание назад по жизненному циклу.
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobNotFoundMessage — текст, с которым очередь отвечает на неизвестный id.
const JobNotFoundMessage = "Job not found in queue"

// Job — одно поставленное в очередь выполнение workflow.
//
// Job создаётся очередью при Enqueue и проходит статусы
// queued → running → finished|failed. Хранится в JobStore
// (Redis или память) ограниченное время.
type Job struct {
	// ID — идентификатор задания (UUID в строковом виде).
	ID string `json:"id"`

	// WorkflowID — какой workflow выполнять.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// Status — текущий статус.
	Status JobStatus `json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Result — результат выполнения (ExecutionResult) для finished.
	Result any `json:"result,omitempty"`

	// FailureInfo — структурированное описание ошибки для failed.
	FailureInfo *FailureInfo `json:"failure_info,omitempty"`

	// Error — заполняется только для not_found.
	Error string `json:"error,omitempty"`
}

// FailureInfo — причина падения задания.
type FailureInfo struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewJob создаёт задание в статусе queued.
func NewJob(workflowID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     JobStatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
}

// NotFoundJob возвращает ответ для неизвестного id.
func NotFoundJob(id string) *Job {
	return &Job{
		ID:     id,
		Status: JobStatusNotFound,
		Error:  JobNotFoundMessage,
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если задание ещё не завершено.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.EndedAt == nil {
		return 0
	}
	return j.EndedAt.Sub(*j.StartedAt)
}

// MarkRunning переводит задание в статус running.
func (j *Job) MarkRunning() error {
	if err := j.transition(JobStatusRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.StartedAt = &now
	return nil
}

// MarkFinished переводит задание в статус finished.
func (j *Job) MarkFinished(result any) error {
	if err := j.transition(JobStatusFinished); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.EndedAt = &now
	j.Result = result
	return nil
}

// MarkFailed переводит задание в статус failed.
func (j *Job) MarkFailed(info *FailureInfo) error {
	if err := j.transition(JobStatusFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.EndedAt = &now
	j.FailureInfo = info
	return nil
}

func (j *Job) transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	return nil
}

// FailureFromError строит FailureInfo из ошибки выполнения.
// Для ExecutionError сохраняются сообщение и детали.
func FailureFromError(err error) *FailureInfo {
	var wfErr *WorkflowExecutionError
	if errors.As(err, &wfErr) {
		return &FailureInfo{Type: wfErr.Kind(), Message: wfErr.Message, Details: wfErr.Details}
	}
	var nodeErr *NodeExecutionError
	if errors.As(err, &nodeErr) {
		return &FailureInfo{Type: nodeErr.Kind(), Message: nodeErr.Message, Details: nodeErr.Details}
	}
	return &FailureInfo{Type: "error", Message: err.Error()}
}
