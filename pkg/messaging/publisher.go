package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publishChannel is the slice of *amqp.Channel the publisher needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher publishes saga events to the topic exchange as persistent JSON
// messages carrying the correlation ID in the message properties.
type Publisher struct {
	ch       publishChannel
	exchange string
	logger   *slog.Logger
}

// NewPublisher creates a publisher bound to the configured topic exchange.
func NewPublisher(ch publishChannel, exchange string, logger *slog.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, logger: logger}
}

// Publish serializes payload as JSON and publishes it with the given routing
// key. Errors propagate to the caller so consuming handlers can nack and let
// the broker redeliver.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any, correlationID string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", routingKey, err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: correlationID,
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("exchange", p.exchange),
		slog.String("routing_key", routingKey),
		slog.String("correlation_id", correlationID),
	)
	return nil
}
