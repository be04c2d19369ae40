package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/events"
)

// queueBinding maps one consumer-group queue to its routing key.
type queueBinding struct {
	Queue      string
	RoutingKey string
}

// QueueBindings lists every consumer-group queue and the routing key it is
// bound with. The order.cancelled key appears twice so one publish fans out
// to both the notification and the order compensation groups.
func QueueBindings() []queueBinding {
	return []queueBinding{
		{QOrchestratorOrderPlaced, events.RkOrderPlaced},
		{QProductStockReservation, events.RkStockReservationRequested},
		{QOrchestratorStockReserved, events.RkStockReserved},
		{QOrchestratorStockFailed, events.RkStockReservationFailed},
		{QNotificationConfirmed, events.RkOrderConfirmed},
		{QNotificationCancelled, events.RkOrderCancelled},
		{QOrderCompensation, events.RkOrderCancelled},
	}
}

// DeclareTopology declares the topic exchange, the dead-letter exchange and
// queue, and all consumer-group queues with their bindings. Every
// declaration is idempotent, so any service may run it at startup.
func DeclareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(
		cfg.ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.ExchangeName, err)
	}

	if err := ch.ExchangeDeclare(
		cfg.DlxExchangeName,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare dlx exchange %s: %w", cfg.DlxExchangeName, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.DlxQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare dlq %s: %w", cfg.DlxQueueName, err)
	}

	if err := ch.QueueBind(cfg.DlxQueueName, "", cfg.DlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind dlq %s: %w", cfg.DlxQueueName, err)
	}

	args := queueArgs(cfg)
	for _, b := range QueueBindings() {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.RoutingKey, cfg.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.Queue, b.RoutingKey, err)
		}
	}

	return nil
}

func queueArgs(cfg Config) amqp.Table {
	args := amqp.Table{
		"x-dead-letter-exchange": cfg.DlxExchangeName,
	}
	if cfg.QueueMaxLength > 0 {
		args["x-max-length"] = int32(cfg.QueueMaxLength)
	}
	if cfg.QueueMessageTTLSeconds > 0 {
		args["x-message-ttl"] = int32(cfg.QueueMessageTTLSeconds * 1000)
	}
	return args
}
