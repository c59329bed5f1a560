// automateos-api — HTTP API: CRUD workflow, приём webhook, журнал
// выполнения.
//
// При QUEUE_BACKEND=memory задания выполняются в этом же процессе;
// при QUEUE_BACKEND=rabbitmq API только публикует задания, выполняет
// их automateos-worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/automateos/internal/api"
	"github.com/shaiso/automateos/internal/config"
	"github.com/shaiso/automateos/internal/mq"
	"github.com/shaiso/automateos/internal/orchestrator"
	"github.com/shaiso/automateos/internal/queue"
	"github.com/shaiso/automateos/internal/repo"
	"github.com/shaiso/automateos/internal/telemetry"
	"github.com/shaiso/automateos/internal/worker"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting automateos-api",
		"environment", cfg.Environment,
		"storage", cfg.Storage,
		"queue_backend", cfg.QueueBackend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище
	workflows, logs, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Очередь
	q, closeQueue, err := openQueue(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open queue", "error", err)
		os.Exit(1)
	}
	defer closeQueue()

	engine := orchestrator.New(orchestrator.Config{Logger: logger})

	// In-process воркер для memory бэкенда
	var w *worker.Worker
	if cfg.UsesMemoryQueue() {
		w = worker.New(worker.Config{
			Queue: q,
			Processor: worker.NewProcessor(worker.ProcessorConfig{
				Workflows:  workflows,
				Logs:       logs,
				Engine:     engine,
				JobTimeout: cfg.JobTimeout,
				Logger:     logger,
			}),
			Logger: logger,
		})
		if err := w.Start(ctx); err != nil {
			logger.Error("failed to start worker", "error", err)
			os.Exit(1)
		}
	}

	handler := api.NewHandler(api.Config{
		Workflows: workflows,
		Logs:      logs,
		Queue:     q,
		QueueType: cfg.QueueBackend,
		Engine:    engine,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.APIAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if w != nil {
		w.Stop()
	}

	logger.Info("stopped")
}

// openStore открывает хранилище workflow и журнала.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repo.WorkflowStore, repo.ExecutionLogStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return repo.NewMemoryWorkflowRepo(), repo.NewMemoryExecutionLogRepo(), func() {}, nil
	}

	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	logger.Info("connected to database")

	return repo.NewWorkflowRepo(pool), repo.NewExecutionLogRepo(pool), pool.Close, nil
}

// openQueue создаёт очередь выбранного бэкенда.
func openQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Queue, func(), error) {
	qcfg := queue.Config{
		Backend:     cfg.QueueBackend,
		Concurrency: cfg.WorkerConcurrency,
		Capacity:    cfg.QueueCapacity,
		ResultTTL:   cfg.JobResultTTL,
		Logger:      logger,
	}

	if cfg.UsesMemoryQueue() {
		q, err := queue.New(qcfg)
		return q, func() {}, err
	}

	conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	logger.Info("RabbitMQ connected")

	rdb, err := queue.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	logger.Info("Redis connected")

	qcfg.Conn = conn
	qcfg.Redis = rdb

	q, err := queue.New(qcfg)
	if err != nil {
		rdb.Close()
		conn.Close()
		return nil, nil, err
	}

	return q, func() {
		rdb.Close()
		conn.Close()
	}, nil
}
