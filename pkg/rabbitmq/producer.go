// Package rabbitmq publishes booking lifecycle events to a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher is implemented by anything that can push an event onto the bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *zap.Logger
}

// EventProducerFallback is a no-op publisher used when RabbitMQ is not configured
// or unreachable at startup.
type EventProducerFallback struct {
	log *zap.Logger
}

func NewFallback(log *zap.Logger) *EventProducerFallback {
	return &EventProducerFallback{log: log.With(zap.String("component", "rabbitmq_producer"), zap.String("mode", "fallback"))}
}

func (p *EventProducerFallback) Publish(ctx context.Context, routingKey string, body any) error {
	p.log.Debug("publish skipped", zap.String("routing_key", routingKey))
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and declares the durable topic exchange.
func NewEventProducer(amqpURL, exchange string, log *zap.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	p := &EventProducer{
		conn:     conn,
		exchange: exchange,
		log:      log.With(zap.String("component", "rabbitmq_producer"), zap.String("exchange", exchange)),
	}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}

	return p, nil
}

func (p *EventProducer) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

// Publish sends body as JSON with the given routing key. A failed publish
// reopens the channel and retries once.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		p.log.Error("json marshal failed", zap.String("routing_key", routingKey), zap.Error(err))
		return err
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn("publish failed; reopening channel", zap.String("routing_key", routingKey), zap.Error(err))
	if chErr := p.openChannel(); chErr != nil {
		return errors.Join(err, chErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
