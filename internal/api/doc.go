// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (хранилища, очередь, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, metrics, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - webhook_handler.go  — /webhook/{webhook_id}, /jobs, /queue
//   - workflow_handler.go — обработчики для /workflows
//   - log_handler.go      — журнал выполнения: список, счётчик, очистка, статистика
//
// Успешные ответы оборачиваются в {"data": ...}, ошибки — в
// {"error": {"code", "message"}}.
package api
