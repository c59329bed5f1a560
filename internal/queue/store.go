package queue

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/automateos/internal/domain"
)

// JobStore хранит записи о заданиях ограниченное время.
type JobStore interface {
	// Save сохраняет задание целиком.
	Save(ctx context.Context, job *domain.Job) error

	// Get возвращает задание или ErrJobNotFound.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// Delete удаляет задание (отменённая постановка в очередь).
	Delete(ctx context.Context, id string) error

	// Counts возвращает счётчики выполняющихся и завершённых заданий.
	Counts(ctx context.Context) (*Counts, error)
}

// Counts — счётчики заданий.
type Counts struct {
	Started  int64
	Finished int64
	Failed   int64
}

// MemoryJobStore — JobStore в памяти процесса.
// Завершённые задания удаляются через ttl после EndedAt.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	ttl  time.Duration

	lastPrune time.Time

	// now подменяется в тестах.
	now func() time.Time
}

// pruneInterval — как часто Save удаляет истёкшие задания.
const pruneInterval = time.Minute

// NewMemoryJobStore создаёт MemoryJobStore.
func NewMemoryJobStore(ttl time.Duration) *MemoryJobStore {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &MemoryJobStore{
		jobs: make(map[string]domain.Job),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryJobStore) Save(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || s.expired(&job) {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (s *MemoryJobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) Counts(_ context.Context) (*Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	for _, job := range s.jobs {
		if s.expired(&job) {
			continue
		}
		switch job.Status {
		case domain.JobStatusRunning:
			c.Started++
		case domain.JobStatusFinished:
			c.Finished++
		case domain.JobStatusFailed:
			c.Failed++
		}
	}
	return &c, nil
}

func (s *MemoryJobStore) expired(job *domain.Job) bool {
	return job.EndedAt != nil && s.now().Sub(*job.EndedAt) > s.ttl
}

// pruneLocked удаляет истёкшие задания не чаще pruneInterval.
// Вызывается под s.mu.
func (s *MemoryJobStore) pruneLocked() {
	now := s.now()
	if now.Sub(s.lastPrune) < pruneInterval {
		return
	}
	s.lastPrune = now

	for id, job := range s.jobs {
		if s.expired(&job) {
			delete(s.jobs, id)
		}
	}
}
