// Package event publishes test-lifecycle events onto a topic exchange so
// other services (analytics, notifications) can react without the session
// coordinator knowing about them.
package event

import (
	"encoding/json"
	"log"
	"time"

	"github.com/streadway/amqp"
)

type EventPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// envelope wraps a lifecycle event's payload with the fields every
// consumer needs regardless of event type.
type envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	EmittedAt time.Time   `json:"emitted_at"`
}

func NewEventPublisher(amqpURL, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &EventPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *EventPublisher) Publish(eventType string, payload interface{}) error {
	event := envelope{Type: eventType, Payload: payload, EmittedAt: time.Now()}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	log.Printf("[event] %s: %v", eventType, payload)

	// Use the event type as the routing key for topic exchange
	err = p.channel.Publish(
		p.exchange,
		eventType, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		log.Printf("[event] failed to publish %s: %v", eventType, err)
	}
	return err
}

func (p *EventPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
