// automateos-worker — выполняет задания очереди workflow_execution.
//
// Worker:
//   - Получает задания из RabbitMQ (статус заданий хранится в Redis)
//   - Выполняет workflow через оркестратор
//   - Пишет журнал выполнения в PostgreSQL
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/automateos/internal/config"
	"github.com/shaiso/automateos/internal/mq"
	"github.com/shaiso/automateos/internal/queue"
	"github.com/shaiso/automateos/internal/repo"
	"github.com/shaiso/automateos/internal/telemetry"
	"github.com/shaiso/automateos/internal/worker"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting automateos-worker", "concurrency", cfg.WorkerConcurrency)

	if cfg.UsesMemoryQueue() {
		logger.Error("QUEUE_BACKEND=memory runs jobs inside automateos-api, worker is not needed")
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	var (
		workflows repo.WorkflowStore
		logs      repo.ExecutionLogStore
	)
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, workflows created via API are not visible to this worker")
		workflows, logs = repo.NewMemoryWorkflowRepo(), repo.NewMemoryExecutionLogRepo()
	} else {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connected")

		workflows, logs = repo.NewWorkflowRepo(pool), repo.NewExecutionLogRepo(pool)
	}

	// RabbitMQ
	conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("RabbitMQ connected")

	// Создаём топологию
	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology ready", "topology", mq.TopologyInfo())

	// Redis
	rdb, err := queue.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	processor := worker.NewProcessor(worker.ProcessorConfig{
		Workflows:  workflows,
		Logs:       logs,
		JobTimeout: cfg.JobTimeout,
		Logger:     logger,
	})

	q, err := queue.New(queue.Config{
		Backend:       queue.BackendRabbitMQ,
		Concurrency:   cfg.WorkerConcurrency,
		ResultTTL:     cfg.JobResultTTL,
		Conn:          conn,
		Redis:         rdb,
		OnInterrupted: processor.Interrupt,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to create queue", "error", err)
		os.Exit(1)
	}

	// Создаём worker
	w := worker.New(worker.Config{
		Queue:     q,
		Processor: processor,
		Logger:    logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.WorkerAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	// Останавливаем worker: текущие задания доигрываются
	w.Stop()
	logger.Info("automateos-worker stopped")
}
