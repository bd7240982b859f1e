// Package amqp publishes ledger mutation events to RabbitMQ.
package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kharcha/internal/core"
	"kharcha/internal/log"
)

const publishTimeout = 5 * time.Second

// channel is the subset of *amqp091.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type Client struct {
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	now          func() time.Time
}

// NewClient dials url and declares a durable topic exchange.
func NewClient(url, exchangeName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Client{conn: conn, channel: ch, exchangeName: exchangeName, now: time.Now}, nil
}

// Publish sends ev as a persistent JSON message routed by its type.
func (c *Client) Publish(ctx context.Context, ev LedgerEvent) error {
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		ev.Type,        // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.EventID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentAMQP).DebugContext(ctx, "Published ledger event",
		"event_id", ev.EventID,
		"type", ev.Type,
		log.FieldExpenseID, ev.ExpenseID,
		"exchange", c.exchangeName)
	return nil
}

// ExpenseCreated publishes an expense.created event.
func (c *Client) ExpenseCreated(ctx context.Context, e core.Expense) error {
	return c.Publish(ctx, NewCreatedEvent(e, c.now()))
}

// ExpenseDeleted publishes an expense.deleted event.
func (c *Client) ExpenseDeleted(ctx context.Context, id string) error {
	return c.Publish(ctx, NewDeletedEvent(id, c.now()))
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
