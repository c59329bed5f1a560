// Package queue реализует очередь заданий на выполнение workflow.
//
// # Бэкенды
//
//   - rabbitmq — задания публикуются в automateos.jobs и переживают
//     рестарт; записи о заданиях хранятся в Redis (RedisJobStore)
//   - memory — буферизованный канал и пул горутин внутри процесса;
//     записи в MemoryJobStore
//
// Выбор бэкенда — QUEUE_BACKEND, см. New.
//
// # Жизненный цикл задания
//
//	Enqueue → queued → running → finished
//	                           ↘ failed
//
// Запись о задании хранится JOB_RESULT_TTL (24 часа по умолчанию) после
// завершения. Status для неизвестного или истёкшего id возвращает
// задание со статусом not_found.
//
// # Повторная доставка
//
// RabbitMQ может доставить сообщение повторно, если воркер упал до ack.
// Завершённое задание пропускается. Задание в статусе running
// помечается failed с типом worker_lost и не выполняется повторно.
//
// # Использование
//
//	q, err := queue.New(queue.Config{
//	    Backend: queue.BackendRabbitMQ,
//	    Conn:    conn,
//	    Redis:   redisClient,
//	})
//	q.Start(ctx, processor.Process)
//	defer q.Stop()
//
//	jobID, err := q.Enqueue(ctx, workflow.ID, payload)
package queue
