package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	mailExchange      = "mail-events"
	filestoreExchange = "filestore-events"

	mailRoutingKey = "mail.send"
)

// Publisher defines the interface for event publishing. The review workflow
// treats it as a best-effort dispatcher: a failed publish is logged by the
// caller and never fails the primary operation.
type Publisher interface {
	// PublishMail hands a human-readable message to the external mail worker.
	PublishMail(ctx context.Context, mail *MailMessage) error

	// Structured events on the filestore-events exchange
	PublishReviewEvent(ctx context.Context, event *ReviewEvent) error
	PublishFileEvent(ctx context.Context, event *FileEvent) error
	PublishUserEvent(ctx context.Context, event *UserEvent) error

	// Close closes the publisher connection
	Close() error
}

// EventPublisher implements the Publisher interface using RabbitMQ
type EventPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	enabled bool
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(rabbitURI string) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{
			enabled: false,
		}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	for _, exchange := range []string{mailExchange, filestoreExchange} {
		err = channel.ExchangeDeclare(
			exchange, // name
			"topic",  // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}

	return &EventPublisher{
		conn:    conn,
		channel: channel,
		enabled: true,
	}, nil
}

// publishEvent publishes an event to RabbitMQ
func (p *EventPublisher) publishEvent(ctx context.Context, exchange, routingKey string, event any) error {
	if !p.enabled {
		log.Printf("Event publishing is disabled, skipping event: %s", routingKey)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("Published event: %s", routingKey)
	return nil
}

func (p *EventPublisher) PublishMail(ctx context.Context, mail *MailMessage) error {
	return p.publishEvent(ctx, mailExchange, mailRoutingKey, mail)
}

func (p *EventPublisher) PublishReviewEvent(ctx context.Context, event *ReviewEvent) error {
	return p.publishEvent(ctx, filestoreExchange, string(event.Type), event)
}

func (p *EventPublisher) PublishFileEvent(ctx context.Context, event *FileEvent) error {
	return p.publishEvent(ctx, filestoreExchange, string(event.Type), event)
}

func (p *EventPublisher) PublishUserEvent(ctx context.Context, event *UserEvent) error {
	return p.publishEvent(ctx, filestoreExchange, string(event.Type), event)
}

// Close closes the connection to RabbitMQ
func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}

	return nil
}
