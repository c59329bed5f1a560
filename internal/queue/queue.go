package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shaiso/automateos/internal/domain"
	"github.com/shaiso/automateos/internal/mq"
)

// Бэкенды очереди.
const (
	BackendRabbitMQ = "rabbitmq"
	BackendMemory   = "memory"
)

// DefaultName — имя очереди выполнения workflow.
const DefaultName = "workflow_execution"

// Значения по умолчанию.
const (
	DefaultConcurrency = 4
	DefaultCapacity    = 1000
	DefaultResultTTL   = 24 * time.Hour
)

// Ошибки очереди.
var (
	// ErrQueueFull — буфер in-process очереди заполнен.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueStopped — очередь остановлена.
	ErrQueueStopped = errors.New("queue is stopped")

	// ErrAlreadyStarted — Start вызван повторно.
	ErrAlreadyStarted = errors.New("queue already started")

	// ErrJobNotFound — задание не найдено в JobStore.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownBackend — неизвестное значение QUEUE_BACKEND.
	ErrUnknownBackend = errors.New("unknown queue backend")
)

// Handler выполняет задание. Возвращённый результат сохраняется в
// Job.Result; ошибка переводит задание в failed с FailureInfo.
type Handler func(ctx context.Context, job *domain.Job, payload map[string]any) (any, error)

// InterruptHandler вызывается для задания, чей воркер пропал во время
// выполнения, до того как задание будет переведено в failed.
// Ошибка возвращает сообщение в очередь.
type InterruptHandler func(ctx context.Context, job *domain.Job, failure *domain.FailureInfo) error

// Queue — очередь заданий на выполнение workflow.
//
// Enqueue не блокируется на выполнении: задание исполняется пулом
// воркеров, запущенным через Start.
type Queue interface {
	// Enqueue ставит задание в очередь и возвращает его id.
	Enqueue(ctx context.Context, workflowID uuid.UUID, payload map[string]any) (string, error)

	// Status возвращает задание. Для неизвестного id — задание со
	// статусом not_found и Error = "Job not found in queue", без ошибки.
	Status(ctx context.Context, jobID string) (*domain.Job, error)

	// Info возвращает сводку по очереди.
	Info(ctx context.Context) (*Info, error)

	// Start запускает воркеры. Не блокирует.
	Start(ctx context.Context, handler Handler) error

	// Stop останавливает воркеры и ждёт завершения текущих заданий.
	Stop()
}

// Info — сводка по очереди.
type Info struct {
	Name             string `json:"name"`
	Backend          string `json:"backend"`
	Length           int    `json:"length"`
	StartedJobCount  int64  `json:"started_job_count"`
	FinishedJobCount int64  `json:"finished_job_count"`
	FailedJobCount   int64  `json:"failed_job_count"`
}

// Config — конфигурация очереди.
type Config struct {
	// Backend — rabbitmq или memory.
	Backend string

	// Name — имя очереди в Info.
	Name string

	// Concurrency — количество воркеров.
	Concurrency int

	// Capacity — размер буфера in-process очереди.
	Capacity int

	// ResultTTL — сколько хранится запись о задании.
	ResultTTL time.Duration

	// Conn — соединение с RabbitMQ (для rabbitmq).
	Conn *mq.Connection

	// Redis — клиент хранилища заданий (для rabbitmq).
	Redis redis.UniversalClient

	// OnInterrupted — завершение задания, прерванного потерей воркера
	// (опционально, для rabbitmq).
	OnInterrupted InterruptHandler

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = DefaultResultTTL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New создаёт очередь выбранного бэкенда.
func New(cfg Config) (Queue, error) {
	cfg.setDefaults()

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryQueue(cfg, NewMemoryJobStore(cfg.ResultTTL)), nil
	case BackendRabbitMQ:
		if cfg.Conn == nil {
			return nil, fmt.Errorf("%w: rabbitmq connection required", ErrUnknownBackend)
		}
		if cfg.Redis == nil {
			return nil, fmt.Errorf("%w: redis client required", ErrUnknownBackend)
		}
		return NewRabbitMQQueue(cfg, NewRedisJobStore(cfg.Redis, cfg.ResultTTL)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
