// Package cli реализует инструмент командной строки automateos.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с automateos API.
// Работает через HTTP и не импортирует internal/api. Исключение —
// workflow validate и workflow run: они используют orchestrator
// напрямую и не требуют запущенного сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	workflows, err := client.ListWorkflows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: automateos logs stats --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workflow: list, show, create, delete, activate, deactivate, validate, run
//   - trigger WEBHOOK_ID
//   - job: status
//   - queue: info
//   - logs: list, show, count, cleanup, stats
//
// Каждая группа создаётся через фабричную функцию (NewWorkflowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
