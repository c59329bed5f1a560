// Package mq — транспорт заданий automateos поверх RabbitMQ.
//
// Файлы:
//   - connection.go — соединение с reconnect; общий канал в confirm-режиме
//   - topology.go   — exchanges, очереди, bindings, длина очереди
//   - publisher.go  — публикация с ожиданием подтверждения брокера
//   - consumer.go   — потребление с ручным ack и повторной доставкой
//
// Сообщения:
//   - job.execute — задание на выполнение workflow (JobPayload),
//     заголовок x-workflow-id
//
// Exchanges:
//   - automateos.jobs — задания
//   - automateos.dlq  — dead letter queue
//
// Ошибка обработчика возвращает сообщение в очередь один раз;
// повторная ошибка или нечитаемое тело уходят в DLQ.
package mq
