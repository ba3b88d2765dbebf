// Package broker publishes registration lifecycle events to RabbitMQ.
// Publishing is best effort: callers log failures and carry on.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"eventcheckin/internal/domain"
)

// ExchangeRegistrations is the topic exchange events are published to,
// routed by event type (e.g. "registration.approved").
const ExchangeRegistrations = "registrations"

// AMQPPublisher publishes registration events to a RabbitMQ topic exchange.
// A closed connection or channel is redialled on the next Publish, so a broker
// restart costs the events published while it was down and nothing more.
type AMQPPublisher struct {
	mu     sync.Mutex
	url    string
	dial   func(url string) (*amqp.Connection, error)
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

// NewAMQPPublisher dials url and declares the durable registrations exchange.
func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, dial: amqp.Dial, logger: logger}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect opens a connection and channel and declares the exchange.
// Callers hold p.mu.
func (p *AMQPPublisher) connect() error {
	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		ExchangeRegistrations, // name
		"topic",               // kind
		true,                  // durable
		false,                 // autoDelete
		false,                 // internal
		false,                 // noWait
		nil,                   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// ensureChannel redials when the channel or its connection has gone away.
// Callers hold p.mu.
func (p *AMQPPublisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return nil
	}
	if p.conn != nil || p.ch != nil {
		p.logger.Warn("rabbitmq connection lost, reconnecting")
	}
	p.closeLocked()
	if err := p.connect(); err != nil {
		return err
	}
	p.logger.Info("rabbitmq reconnected")
	return nil
}

func (p *AMQPPublisher) closeLocked() error {
	var err error
	if p.ch != nil && !p.ch.IsClosed() {
		err = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	p.ch, p.conn = nil, nil
	return err
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev domain.RegistrationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx,
		ExchangeRegistrations, // exchange
		ev.Type,               // routing key
		false,                 // mandatory
		false,                 // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.logger.Debug("registration event published", "type", ev.Type, "registration_id", ev.RegistrationID)
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

type noopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher returns a publisher that only logs at debug level.
func NewNoopPublisher(logger *slog.Logger) domain.EventPublisher {
	return &noopPublisher{logger: logger}
}

func (p *noopPublisher) Publish(_ context.Context, ev domain.RegistrationEvent) error {
	p.logger.Debug("registration event dropped (noop publisher)", "type", ev.Type, "registration_id", ev.RegistrationID)
	return nil
}
