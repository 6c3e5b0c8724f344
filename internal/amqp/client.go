// Package amqp carries transaction sync messages between the API
// server and the ledger worker over RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"benta/internal/log"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *log.Logger
}

func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key mirrors the queue name on the direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionSync enqueues a mirror request for one transaction.
func (c *Client) PublishTransactionSync(ctx context.Context, transactionID int64) error {
	return c.publish(ctx, NewSyncMessage(transactionID))
}

// PublishTransactionDelete enqueues removal of a transaction's ledger row.
func (c *Client) PublishTransactionDelete(ctx context.Context, transactionID int64) error {
	return c.publish(ctx, NewDeleteMessage(transactionID))
}

func (c *Client) publish(ctx context.Context, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.DebugContext(ctx, "published sync message",
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeMessages delivers queue messages to the handlers with manual
// acknowledgement. Handler errors requeue the delivery; undecodable
// messages are dropped. Blocks until ctx is cancelled or the channel
// closes.
func (c *Client) ConsumeMessages(ctx context.Context, syncHandler func(*SyncMessage) error, deleteHandler func(*DeleteMessage) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "consuming sync messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "stopping message consumption", log.FieldError, ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, syncHandler, deleteHandler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, syncHandler func(*SyncMessage) error, deleteHandler func(*DeleteMessage) error) {
	kind, err := DecodeKind(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "dropping undecodable message", log.FieldError, err)
		delivery.Nack(false, false)
		return
	}

	switch kind {
	case KindSync:
		msg, err := SyncMessageFromJSON(delivery.Body)
		if err != nil {
			c.logger.ErrorContext(ctx, "dropping undecodable sync message", log.FieldError, err)
			delivery.Nack(false, false)
			return
		}
		if err := syncHandler(msg); err != nil {
			c.logger.ErrorContext(ctx, "sync message failed, requeueing",
				log.FieldTxID, msg.TransactionID, log.FieldError, err)
			delivery.Nack(false, true)
			return
		}
	case KindDelete:
		msg, err := DeleteMessageFromJSON(delivery.Body)
		if err != nil {
			c.logger.ErrorContext(ctx, "dropping undecodable delete message", log.FieldError, err)
			delivery.Nack(false, false)
			return
		}
		if err := deleteHandler(msg); err != nil {
			c.logger.ErrorContext(ctx, "delete message failed, requeueing",
				log.FieldTxID, msg.TransactionID, log.FieldError, err)
			delivery.Nack(false, true)
			return
		}
	}

	delivery.Ack(false)
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
