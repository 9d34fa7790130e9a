package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gradtrust/portal/internal/domain/merkle"
)

// AMQPExchange is the fanout exchange used when the relay runs over RabbitMQ.
const AMQPExchange = "gradtrust.merkle"

var ErrBrokerClosed = errors.New("amqp connection closed")

// AMQPBridge publishes to a fanout exchange; each portal consumes through its
// own exclusive queue so every instance sees every event.
//
// The connection is redialled lazily: after a broker restart the next Publish
// or Run opens a fresh connection and re-declares the exchange.
type AMQPBridge struct {
	url      string
	exchange string
	dial     func(url string) (*amqp.Connection, error)
	log      *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	pubCh   *amqp.Channel
	closing bool
}

func NewAMQPBridge(amqpURL string, log *slog.Logger) (*AMQPBridge, error) {
	b := newAMQPBridge(amqpURL, amqp.Dial, log)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connectLocked(); err != nil {
		return nil, err
	}
	return b, nil
}

func newAMQPBridge(amqpURL string, dial func(string) (*amqp.Connection, error), log *slog.Logger) *AMQPBridge {
	if log == nil {
		log = slog.Default()
	}
	return &AMQPBridge{
		url:      amqpURL,
		exchange: AMQPExchange,
		dial:     dial,
		log:      log,
	}
}

// connectLocked (re)opens the connection and publishing channel when either
// is missing or closed. b.mu must be held.
func (b *AMQPBridge) connectLocked() error {
	if b.closing {
		return ErrBrokerClosed
	}
	if b.conn != nil && !b.conn.IsClosed() && b.pubCh != nil && !b.pubCh.IsClosed() {
		return nil
	}

	b.dropLocked()

	conn, err := b.dial(b.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(b.exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	if b.conn != nil {
		b.log.Info("amqp_reconnected", "exchange", b.exchange)
	}
	b.conn = conn
	b.pubCh = ch
	return nil
}

func (b *AMQPBridge) dropLocked() {
	if b.pubCh != nil {
		_ = b.pubCh.Close()
		b.pubCh = nil
	}
	if b.conn != nil && !b.conn.IsClosed() {
		_ = b.conn.Close()
	}
}

func (b *AMQPBridge) Publish(ctx context.Context, ev merkle.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connectLocked(); err != nil {
		return err
	}

	return b.pubCh.PublishWithContext(ctx,
		b.exchange,
		"",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
			Type:        ev.Name,
		},
	)
}

// Run consumes on a dedicated channel so publishing and consuming never share
// one. It returns when the deliveries stop; callers retry via RunBridge.
func (b *AMQPBridge) Run(ctx context.Context, sink Sink) error {
	b.mu.Lock()
	err := b.connectLocked()
	var conn *amqp.Connection
	if err == nil {
		conn = b.conn
	}
	b.mu.Unlock()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrBrokerClosed
			}

			var ev merkle.Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				b.log.Warn("feed_bad_bridge_message", "exchange", b.exchange, "err", err)
				continue
			}

			if err := sink.Publish(ctx, ev); err != nil {
				b.log.Warn("feed_publish_failed", "event", ev.Name, "err", err)
			}
		}
	}
}

// Ping redials a dropped connection so readiness recovers without waiting for
// the next event.
func (b *AMQPBridge) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connectLocked()
}

func (b *AMQPBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closing = true
	if b.pubCh != nil {
		_ = b.pubCh.Close()
		b.pubCh = nil
	}
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}
