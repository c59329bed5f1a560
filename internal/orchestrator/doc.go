// Package orchestrator выполняет workflow.
//
// Engine отвечает за:
//   - Последовательное выполнение узлов в порядке определения
//   - Слияние выхода каждого узла в контекст выполнения (engine.Merge)
//   - Сбор результатов узлов и отчёта о падении
//   - Валидацию определения без выполнения (Validate)
//
// Выполнение синхронное и не разделяет состояние между запусками:
// всё состояние одного запуска живёт в RunState. Параллелизм между
// запусками обеспечивает пул воркеров очереди (internal/queue).
//
//	engine := orchestrator.New(orchestrator.Config{Logger: logger})
//	result, err := engine.Execute(ctx, wf, payload)
//	var wfErr *domain.WorkflowExecutionError
//	if errors.As(err, &wfErr) {
//	    // wfErr.Details — отчёт для журнала
//	}
package orchestrator
