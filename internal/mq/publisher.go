package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobExecute MessageType = "job.execute"
)

// HeaderWorkflowID — AMQP заголовок с id workflow задания.
const HeaderWorkflowID = "x-workflow-id"

// ErrNotConfirmed — брокер не подтвердил публикацию (nack).
var ErrNotConfirmed = errors.New("publish not confirmed by broker")

// Publisher публикует сообщения в RabbitMQ с подтверждением брокера:
// Publish возвращает nil, только когда сообщение принято в очередь.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher поверх общего канала conn.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger.With("component", "publisher"),
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobPayload — payload сообщения о задании на выполнение workflow.
type JobPayload struct {
	JobID      string         `json:"job_id"`
	WorkflowID uuid.UUID      `json:"workflow_id"`
	Payload    map[string]any `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Publish публикует msg в exchange и ждёт подтверждения брокера.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, headers amqp.Table) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx,
			string(exchange), string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Headers:      headers,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		// confirm == nil, если канал не в confirm-режиме
		if confirm != nil {
			acked, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("wait confirm %s: %w", msg.ID, err)
			}
			if !acked {
				return fmt.Errorf("%w: %s", ErrNotConfirmed, msg.ID)
			}
		}

		p.logger.Debug("published",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishJob публикует задание на выполнение workflow.
// ID сообщения совпадает с ID задания.
// Потребитель: automateos-worker.
func (p *Publisher) PublishJob(ctx context.Context, payload JobPayload) error {
	msg := &Message{
		ID:        payload.JobID,
		Type:      MessageTypeJobExecute,
		Payload:   payload,
		Timestamp: payload.EnqueuedAt,
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyExecute, msg, amqp.Table{
		HeaderWorkflowID: payload.WorkflowID.String(),
	})
}
