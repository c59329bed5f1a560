package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shaiso/automateos/internal/orchestrator"
	"github.com/shaiso/automateos/internal/queue"
	"github.com/shaiso/automateos/internal/repo"
	"github.com/shaiso/automateos/internal/telemetry"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	workflows repo.WorkflowStore
	logs      repo.ExecutionLogStore
	queue     queue.Queue
	engine    *orchestrator.Engine
	queueType string
	logger    *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Workflows repo.WorkflowStore
	Logs      repo.ExecutionLogStore
	Queue     queue.Queue

	// QueueType — бэкенд очереди, возвращается в ответе webhook.
	QueueType string

	// Engine используется для валидации определений
	// (опционально; если nil — orchestrator.New).
	Engine *orchestrator.Engine

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := cfg.Engine
	if engine == nil {
		engine = orchestrator.New(orchestrator.Config{Logger: logger})
	}

	return &Handler{
		workflows: cfg.Workflows,
		logs:      cfg.Logs,
		queue:     cfg.Queue,
		engine:    engine,
		queueType: cfg.QueueType,
		logger:    logger,
		now:       time.Now,
	}
}

// log возвращает логгер запроса (с request_id) или общий.
func (h *Handler) log(r *http.Request) *slog.Logger {
	if logger, ok := r.Context().Value(telemetry.CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return h.logger
}
