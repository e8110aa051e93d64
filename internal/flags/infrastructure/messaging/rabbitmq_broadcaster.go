// Package messaging fans flag invalidations out to peer instances.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

// ExchangeName is the topic exchange carrying flag invalidations.
const ExchangeName = "flagwise.flags"

// InvalidationHandler reacts to an invalidation published by a peer.
type InvalidationHandler func(ctx context.Context, event domain.FlagInvalidated) error

// RabbitMQBroadcaster publishes invalidations and consumes those of its peers.
// Every instance owns an exclusive, server-named queue, so each event reaches
// every running instance once.
type RabbitMQBroadcaster struct {
	conn      *amqp.Connection
	pubCh     *amqp.Channel
	subCh     *amqp.Channel
	queue     string
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
	closeChan chan struct{}
	closeOnce sync.Once
}

// NewRabbitMQBroadcaster connects, declares the exchange and binds a private queue.
func NewRabbitMQBroadcaster(url string, logger *slog.Logger) (*RabbitMQBroadcaster, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	b := &RabbitMQBroadcaster{
		conn:      conn,
		logger:    logger,
		closeChan: make(chan struct{}),
	}
	if err := b.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("RabbitMQ broadcaster connected",
		"exchange", ExchangeName,
		"queue", b.queue,
	)
	return b, nil
}

func (b *RabbitMQBroadcaster) setup() error {
	var err error
	if b.pubCh, err = b.conn.Channel(); err != nil {
		return fmt.Errorf("failed to open publish channel: %w", err)
	}
	if b.subCh, err = b.conn.Channel(); err != nil {
		return fmt.Errorf("failed to open consume channel: %w", err)
	}

	err = b.pubCh.ExchangeDeclare(
		ExchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := b.subCh.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	b.queue = q.Name

	if err := b.subCh.QueueBind(b.queue, domain.RoutingKeyFlagInvalidated, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// Publish sends an invalidation to every instance.
func (b *RabbitMQBroadcaster) Publish(ctx context.Context, event domain.FlagInvalidated) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.pubCh.PublishWithContext(ctx,
		ExchangeName,
		domain.RoutingKeyFlagInvalidated,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish invalidation for %q: %w", event.Name, err)
	}

	b.logger.Debug("invalidation published",
		"flag", event.Name,
		"action", string(event.Action),
	)
	return nil
}

// Run consumes invalidations until ctx is cancelled or Close is called.
// Undecodable messages and handler failures are dropped after logging:
// a missed invalidation only delays convergence until the decision TTL.
func (b *RabbitMQBroadcaster) Run(ctx context.Context, handle InvalidationHandler) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("broadcaster already running")
	}
	b.running = true
	b.mu.Unlock()

	if err := b.subCh.Qos(16, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := b.subCh.Consume(
		b.queue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-b.closeChan:
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("invalidation channel closed unexpectedly")
			}
			b.deliver(ctx, msg, handle)
		}
	}
}

func (b *RabbitMQBroadcaster) deliver(ctx context.Context, msg amqp.Delivery, handle InvalidationHandler) {
	var event domain.FlagInvalidated
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.Name == "" {
		b.logger.Warn("discarding malformed invalidation", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	if err := handle(ctx, event); err != nil {
		b.logger.Error("failed to apply invalidation",
			"flag", event.Name,
			"origin", event.Origin,
			"error", err,
		)
		_ = msg.Nack(false, false)
		return
	}

	if err := msg.Ack(false); err != nil {
		b.logger.Error("failed to ack invalidation", "error", err)
	}
}

// Ping reports whether the broker connection is still open.
func (b *RabbitMQBroadcaster) Ping(context.Context) error {
	if b.conn.IsClosed() {
		return fmt.Errorf("connection closed")
	}
	return nil
}

// Close stops Run and closes the connection.
func (b *RabbitMQBroadcaster) Close() error {
	b.closeOnce.Do(func() { close(b.closeChan) })

	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false

	if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	b.logger.Info("RabbitMQ broadcaster closed")
	return nil
}
