package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoChannel — канал ещё не открыт или соединение потеряно.
var ErrNoChannel = errors.New("no amqp channel available")

// Параметры соединения.
const (
	heartbeat    = 10 * time.Second
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Connection — AMQP соединение automateos с автоматическим reconnect.
//
// Общий канал служит для публикации заданий и объявления топологии.
// Каждый consumer открывает свой канал (OpenChannel): prefetch и ack
// одного воркера не влияют на остальные.
type Connection struct {
	url    string
	addr   string // url без пароля, для логов
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	done        chan struct{}
	reconnectCh chan struct{}
}

// NewConnection подключается к RabbitMQ по url.
//
// Соединение подписывается в RabbitMQ именем процесса
// (automateos-api, automateos-worker), чтобы его было видно
// в management UI.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		url:         url,
		addr:        redactURL(url),
		name:        filepath.Base(os.Args[0]),
		logger:      logger.With("component", "amqp"),
		done:        make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.dial(); err != nil {
		return nil, err
	}

	go c.watch()

	return c, nil
}

// redactURL убирает учётные данные из AMQP url.
func redactURL(url string) string {
	uri, err := amqp.ParseURI(url)
	if err != nil {
		return "invalid-url"
	}
	return fmt.Sprintf("%s://%s:%d/%s", uri.Scheme, uri.Host, uri.Port, strings.TrimPrefix(uri.Vhost, "/"))
}

func (c *Connection) dial() error {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  heartbeat,
		Properties: amqp.Table{"connection_name": c.name},
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	// Общий канал в confirm-режиме: Publisher ждёт ack брокера
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return errors.New("connection closed during dial")
	}
	c.conn, c.channel = conn, ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ", "addr", c.addr, "connection_name", c.name)
	return nil
}

// watch ждёт разрыва соединения и восстанавливает его.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		lost := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case amqpErr, ok := <-lost:
			if !ok && c.isClosed() {
				return
			}
			c.logger.Warn("connection lost", "error", amqpErr)
		}

		if !c.redial() {
			return
		}

		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
	}
}

// redial повторяет dial с экспоненциальной паузой.
// Возвращает false, если соединение закрыли во время ожидания.
func (c *Connection) redial() bool {
	delay := reconnectMin
	for {
		c.logger.Info("reconnecting", "delay", delay)

		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		err := c.dial()
		if err == nil {
			return true
		}

		c.logger.Warn("reconnect failed", "error", err)
		delay = min(delay*2, reconnectMax)
	}
}

func (c *Connection) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// OpenChannel открывает отдельный канал. Закрывает его вызывающий.
func (c *Connection) OpenChannel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNoChannel
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// ReconnectNotify сигналит после восстановления соединения.
//
// Сигнал получает один подписчик; остальные consumers видят закрытие
// своих deliveries и сами повторяют OpenChannel.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// WithChannel вызывает fn с общим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// IsConnected сообщает, открыто ли соединение (для /healthz).
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close закрывает канал и соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("connection closed")
	return errors.Join(errs...)
}
