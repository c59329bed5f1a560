// Package worker выполняет задания очереди.
//
// # Обзор
//
// Worker — stateless компонент системы, который берёт задания из
// queue.Queue и выполняет соответствующий workflow. Worker отвечает за:
//
//   - Загрузку workflow и проверку, что он активен
//   - Запись в журнал выполнения (running → success|failed)
//   - Выполнение узлов через orchestrator.Engine с таймаутом задания
//
// # Ключевые компоненты
//
// ## Processor
//
// Обрабатывает одно задание. Process имеет сигнатуру queue.Handler.
//
//	p := worker.NewProcessor(worker.ProcessorConfig{
//	    Workflows:  workflowRepo,
//	    Logs:       logRepo,
//	    JobTimeout: 10 * time.Minute,
//	    Logger:     logger,
//	})
//
// ## Worker
//
// Хост для очереди: связывает Queue и Processor, управляет жизненным
// циклом.
//
//	w := worker.New(worker.Config{Queue: q, Processor: p, Logger: logger})
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Журнал выполнения
//
// Запись создаётся до выполнения первого узла и завершается ровно один
// раз. Для отсутствующего или неактивного workflow запись не создаётся.
//
// Retry не выполняется: упавшее задание остаётся failed.
package worker
