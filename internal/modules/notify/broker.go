// README: RabbitMQ sink publishing every delivered intent to a topic exchange.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type BrokerSink struct {
	ch       publisher
	exchange string
}

func NewBrokerSink(ch publisher, exchange string) *BrokerSink {
	return &BrokerSink{ch: ch, exchange: exchange}
}

func (s *BrokerSink) Name() string { return "broker" }

type brokerEvent struct {
	Intent
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// RoutingKey is ride.<audience>.<kind>, e.g. ride.drivers.ride_available.
func RoutingKey(in Intent) string {
	return fmt.Sprintf("ride.%s.%s", in.Audience, in.Kind)
}

func (s *BrokerSink) Send(ctx context.Context, msg Message) error {
	if s.ch == nil {
		return nil
	}
	now := time.Now().UTC()
	body, err := json.Marshal(brokerEvent{Intent: msg.Intent, Subject: msg.Subject, Body: msg.Body, SentAt: now})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.ch.PublishWithContext(ctx, s.exchange, RoutingKey(msg.Intent), false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		MessageId:    string(msg.Intent.RideID),
		Type:         string(msg.Intent.Kind),
	})
}
