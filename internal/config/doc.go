// Package config загружает конфигурацию сервисов.
//
// Источники (по возрастанию приоритета): значения по умолчанию,
// .env файл, переменные окружения. Основные переменные:
//
//	DB_URL, RABBITMQ_URL, REDIS_URL
//	LOG_LEVEL, LOG_FORMAT
//	API_PORT, WORKER_PORT, API_URL
//	QUEUE_BACKEND (rabbitmq|memory), STORAGE (postgres|memory)
//	WORKER_CONCURRENCY, QUEUE_CAPACITY, JOB_TIMEOUT, JOB_RESULT_TTL
//	ENVIRONMENT
package config
