package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shaiso/automateos/internal/queue"
)

// Worker выполняет задания из очереди.
//
// Worker — stateless компонент системы, который:
//   - Получает задания из Queue (RabbitMQ или in-process)
//   - Выполняет workflow через Processor
//   - Пишет журнал выполнения
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди RabbitMQ.
type Worker struct {
	queue     queue.Queue
	processor *Processor

	logger    *slog.Logger
	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Queue     queue.Queue
	Processor *Processor
	Logger    *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		queue:     cfg.Queue,
		processor: cfg.Processor,
		logger:    logger.With("component", "worker"),
	}
}

// Start запускает воркеры очереди. Не блокирует.
func (w *Worker) Start(ctx context.Context) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	w.logger.Info("starting worker")

	if err := w.queue.Start(ctx, w.processor.Process); err != nil {
		return err
	}

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущих заданий.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	if w.stopped {
		w.stoppedMu.Unlock()
		return
	}
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")
	w.queue.Stop()
	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
