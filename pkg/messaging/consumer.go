package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/logger"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/validator"
)

// ErrPoisonMessage marks a delivery that can never succeed, such as a body
// that does not decode. Poison messages skip the retry and go straight to
// the dead-letter exchange.
var ErrPoisonMessage = errors.New("poison message")

// DeliveryHandler processes one AMQP delivery. A nil return acks the
// delivery; an error nacks it.
type DeliveryHandler func(ctx context.Context, d amqp.Delivery) error

// Handle adapts a typed event handler into a DeliveryHandler by decoding
// the JSON body. Decode and validation failures are poison, a retry can
// never fix a malformed event.
func Handle[T any](h func(ctx context.Context, event T) error) DeliveryHandler {
	return func(ctx context.Context, d amqp.Delivery) error {
		var event T
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return fmt.Errorf("%w: decode body: %v", ErrPoisonMessage, err)
		}
		if err := validator.Validate(event); err != nil {
			return fmt.Errorf("%w: validate event: %v", ErrPoisonMessage, err)
		}
		return h(ctx, event)
	}
}

// Consumer pulls deliveries from one queue with prefetch 1, so processing
// is strictly sequential per instance. Run multiple instances for
// horizontal parallelism.
type Consumer struct {
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
}

// NewConsumer creates a consumer for the named queue.
func NewConsumer(ch *amqp.Channel, queue string, logger *slog.Logger) *Consumer {
	return &Consumer{ch: ch, queue: queue, logger: logger}
}

// Start consumes deliveries until ctx is cancelled or the delivery channel
// closes. It blocks, so callers run it in its own goroutine.
func (c *Consumer) Start(ctx context.Context, handler DeliveryHandler) error {
	if err := c.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos on %s: %w", c.queue, err)
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue,
		"",    // consumer tag, broker-generated
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consumer started", slog.String("queue", c.queue))

	for d := range deliveries {
		c.dispatch(ctx, d, handler)
	}

	c.logger.Info("consumer stopped", slog.String("queue", c.queue))
	return nil
}

// dispatch runs the handler with the delivery's correlation ID restored into
// the log context, then settles the single delivery tag. Failed deliveries
// are requeued once; a failure on the redelivery dead-letters the message.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handler DeliveryHandler) {
	if d.CorrelationId != "" {
		ctx = logger.WithCorrelationID(ctx, d.CorrelationId)
	}

	err := handler(ctx, d)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.ErrorContext(ctx, "ack failed",
				slog.String("queue", c.queue),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := !d.Redelivered && !errors.Is(err, ErrPoisonMessage)

	c.logger.ErrorContext(ctx, "handler failed",
		slog.String("queue", c.queue),
		slog.String("routing_key", d.RoutingKey),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.logger.ErrorContext(ctx, "nack failed",
			slog.String("queue", c.queue),
			slog.String("error", nackErr.Error()),
		)
	}
}
