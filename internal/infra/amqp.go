// README: RabbitMQ connection and channel for the ride event exchange.
package infra

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker owns one connection and one publishing channel.
type Broker struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewBroker dials url and declares exchange as a durable topic exchange.
func NewBroker(url, exchange string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Broker{Conn: conn, Channel: ch}, nil
}

func (b *Broker) Close() error {
	if err := b.Channel.Close(); err != nil {
		_ = b.Conn.Close()
		return err
	}
	return b.Conn.Close()
}
