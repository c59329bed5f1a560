package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/automateos/internal/domain"
)

// MemoryWorkflowRepo — хранилище workflow в памяти процесса.
// Используется в режиме STORAGE=memory и в тестах.
type MemoryWorkflowRepo struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]domain.Workflow
}

// NewMemoryWorkflowRepo создаёт пустое хранилище.
func NewMemoryWorkflowRepo() *MemoryWorkflowRepo {
	return &MemoryWorkflowRepo{workflows: make(map[uuid.UUID]domain.Workflow)}
}

func (r *MemoryWorkflowRepo) Create(_ context.Context, wf *domain.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[wf.ID]; exists {
		return ErrAlreadyExists
	}
	for _, existing := range r.workflows {
		if existing.WebhookID == wf.WebhookID {
			return ErrAlreadyExists
		}
	}
	r.workflows[wf.ID] = *wf
	return nil
}

func (r *MemoryWorkflowRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &wf, nil
}

func (r *MemoryWorkflowRepo) GetByWebhookID(_ context.Context, webhookID string) (*domain.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, wf := range r.workflows {
		if wf.WebhookID == webhookID {
			return &wf, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryWorkflowRepo) List(_ context.Context) ([]domain.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryWorkflowRepo) Update(_ context.Context, wf *domain.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.workflows[wf.ID]
	if !ok {
		return ErrNotFound
	}
	wf.UpdatedAt = time.Now().UTC()
	existing.Name = wf.Name
	existing.Description = wf.Description
	existing.Definition = wf.Definition
	existing.IsActive = wf.IsActive
	existing.UpdatedAt = wf.UpdatedAt
	r.workflows[wf.ID] = existing
	return nil
}

func (r *MemoryWorkflowRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(r.workflows, id)
	return nil
}

// MemoryExecutionLogRepo — журнал выполнения в памяти процесса.
type MemoryExecutionLogRepo struct {
	mu   sync.RWMutex
	logs map[uuid.UUID]domain.ExecutionLog
}

// NewMemoryExecutionLogRepo создаёт пустой журнал.
func NewMemoryExecutionLogRepo() *MemoryExecutionLogRepo {
	return &MemoryExecutionLogRepo{logs: make(map[uuid.UUID]domain.ExecutionLog)}
}

func (r *MemoryExecutionLogRepo) Create(_ context.Context, log *domain.ExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.logs[log.ID]; exists {
		return ErrAlreadyExists
	}
	r.logs[log.ID] = *log
	return nil
}

func (r *MemoryExecutionLogRepo) Complete(_ context.Context, id uuid.UUID, patch domain.ExecutionLogPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log, ok := r.logs[id]
	if !ok {
		return ErrNotFound
	}
	if log.IsFinished() {
		return ErrInvalidState
	}
	log.Apply(patch)
	r.logs[id] = log
	return nil
}

func (r *MemoryExecutionLogRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ExecutionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log, ok := r.logs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &log, nil
}

func (r *MemoryExecutionLogRepo) GetByJobID(_ context.Context, jobID string) (*domain.ExecutionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.ExecutionLog
	for _, log := range r.logs {
		if log.JobID != jobID {
			continue
		}
		if latest == nil || log.StartedAt.After(latest.StartedAt) {
			latest = &log
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (r *MemoryExecutionLogRepo) ListByWorkflow(_ context.Context, filter domain.ExecutionLogFilter) ([]domain.ExecutionLog, error) {
	filter.Normalize()

	r.mu.RLock()
	matched := make([]domain.ExecutionLog, 0)
	for _, log := range r.logs {
		if log.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && log.Status != filter.Status {
			continue
		}
		matched = append(matched, log)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })

	if filter.Offset >= len(matched) {
		return []domain.ExecutionLog{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

func (r *MemoryExecutionLogRepo) CountByWorkflow(_ context.Context, workflowID uuid.UUID, status domain.ExecutionStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, log := range r.logs {
		if log.WorkflowID == workflowID && (status == "" || log.Status == status) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryExecutionLogRepo) DeleteOlderThan(_ context.Context, filter domain.CleanupFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, log := range r.logs {
		if !log.StartedAt.Before(filter.Before) {
			continue
		}
		if filter.Status != "" && log.Status != filter.Status {
			continue
		}
		count++
		if !filter.DryRun {
			delete(r.logs, id)
		}
	}
	return count, nil
}

func (r *MemoryExecutionLogRepo) Stats(_ context.Context, now time.Time) (*domain.LogStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &domain.LogStats{
		TotalLogs: int64(len(r.logs)),
		ByStatus: map[string]int64{
			string(domain.ExecutionStatusSuccess): 0,
			string(domain.ExecutionStatusFailed):  0,
			string(domain.ExecutionStatusRunning): 0,
		},
		ByAge: make(map[string]int64, len(domain.StatsWindows)),
	}
	for _, w := range domain.StatsWindows {
		stats.ByAge[w.Label] = 0
	}

	for _, log := range r.logs {
		stats.ByStatus[string(log.Status)]++
		for _, w := range domain.StatsWindows {
			if !log.StartedAt.Before(now.Add(-w.Age)) {
				stats.ByAge[w.Label]++
			}
		}
		if stats.OldestLog == nil || log.StartedAt.Before(*stats.OldestLog) {
			started := log.StartedAt
			stats.OldestLog = &started
		}
	}
	return stats, nil
}
