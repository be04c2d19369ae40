package messaging

import "fmt"

// Queue names for the saga consumer groups.
const (
	QOrchestratorOrderPlaced   = "orchestrator.order_placed"
	QProductStockReservation   = "product.stock_reservation_requested"
	QOrchestratorStockReserved = "orchestrator.stock_reserved"
	QOrchestratorStockFailed   = "orchestrator.stock_failed"
	QNotificationConfirmed     = "notification.order_confirmed"
	QNotificationCancelled     = "notification.order_cancelled"
	QOrderCompensation         = "order.compensation_cancelled"
)

// Config holds RabbitMQ connection and topology configuration.
type Config struct {
	HostName    string `env:"RABBITMQ_HOSTNAME" envDefault:"localhost"`
	Port        int    `env:"RABBITMQ_PORT" envDefault:"5672"`
	UserName    string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	Password    string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	VirtualHost string `env:"RABBITMQ_VHOST" envDefault:"/"`

	ExchangeName    string `env:"RABBITMQ_EXCHANGE" envDefault:"ecommerce.topic"`
	DlxExchangeName string `env:"RABBITMQ_DLX_EXCHANGE" envDefault:"ecommerce.dlx"`
	DlxQueueName    string `env:"RABBITMQ_DLX_QUEUE" envDefault:"ecommerce.dlq"`

	// QueueMaxLength caps queue depth; 0 disables the cap.
	QueueMaxLength int `env:"RABBITMQ_QUEUE_MAX_LENGTH" envDefault:"0"`
	// QueueMessageTTLSeconds expires stale messages; 0 disables the TTL.
	QueueMessageTTLSeconds int `env:"RABBITMQ_QUEUE_MESSAGE_TTL_SECONDS" envDefault:"0"`
}

// URL builds the AMQP connection string.
func (c Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.UserName, c.Password, c.HostName, c.Port, vhostPath(c.VirtualHost))
}

func vhostPath(vhost string) string {
	if vhost == "" || vhost == "/" {
		return "/"
	}
	return "/" + vhost
}
