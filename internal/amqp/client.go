// Package amqp relays transaction change events between server instances
// and to the ledger mirror worker over a RabbitMQ fanout exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"cashstash/internal/core"
	applog "cashstash/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	errChannelClosed = errors.New("message channel closed")
)

// Client owns one connection and a publishing channel. Consumers open their
// own channels.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *applog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials url and declares the fanout exchange. When queueName is
// set a durable queue is declared and bound to it.
func NewClient(url, exchangeName, queueName string, logger *applog.Logger) (*Client, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(applog.ComponentAMQP),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if queue == "" {
		return nil
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// reconnect replaces a dead connection.
func (c *Client) reconnect() error {
	c.mu.Lock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel = nil, nil
	c.mu.Unlock()
	return c.connect()
}

// PublishChange sends c to every bound queue.
func (c *Client) PublishChange(ctx context.Context, change core.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish change: %w", ErrCircuitOpen)
	}

	body, err := NewChangeMessage(change).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		if err := c.reconnect(); err != nil {
			c.recordFailure()
			return err
		}
		c.mu.Lock()
		ch = c.channel
		c.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		c.exchangeName, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published change",
		applog.NewFields().
			WithUser(change.UserID).
			WithOperation(applog.OpPublish).
			ToSlice()...)
	return nil
}

// Publish lets the client stand in wherever a change publisher is needed.
func (c *Client) Publish(ctx context.Context, change core.Change) error {
	return c.PublishChange(ctx, change)
}

// ConsumeChanges reads changes from queue until ctx ends or the channel
// dies. An empty queue consumes through an exclusive, server-named queue
// that lives as long as the consumer. Handler errors requeue the message;
// undecodable messages are dropped.
func (c *Client) ConsumeChanges(ctx context.Context, queue string, handler func(context.Context, core.Change) error) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return errChannelClosed
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	exclusive := queue == ""
	if exclusive {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare relay queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, "", c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind relay queue: %w", err)
		}
		queue = q.Name
	}

	msgs, err := ch.Consume(
		queue,     // queue
		"",        // consumer
		false,     // auto-ack
		exclusive, // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming changes", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			msg, err := ChangeMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to decode change message", applog.FieldError, err)
				delivery.Nack(false, false)
				continue
			}
			if err := handler(ctx, msg.Change); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle change",
					applog.NewFields().
						WithUser(msg.Change.UserID).
						WithError(err).
						WithOperation(applog.OpConsume).
						ToSlice()...)
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}

// ConsumeWithRetry keeps ConsumeChanges running across broker restarts,
// reconnecting with exponential backoff. It returns when ctx is done.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler func(context.Context, core.Change) error) error {
	attempt := 0
	for {
		err := c.ConsumeChanges(ctx, queue, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errChannelClosed) && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Consumer lost connection, reconnecting",
			applog.FieldError, err, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := c.reconnect(); err != nil {
			attempt++
			continue
		}
		attempt = 0
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("Circuit breaker opened", "failures", n)
		}
	}
}
