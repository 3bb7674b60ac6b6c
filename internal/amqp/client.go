package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "carsales/internal/log"
)

const publishTimeout = 5 * time.Second

// Client publishes and consumes carsales events over one connection.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	logger       *applog.Logger

	mu sync.Mutex // amqp091 channels are not safe for concurrent publishes
}

// NewClient dials url and declares the durable direct exchange.
func NewClient(url, exchangeName string, logger *applog.Logger) (*Client, error) {
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
		logger:       logger.WithComponent(applog.ComponentAMQP),
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return client, nil
}

// DeclareQueue declares a durable queue and binds it to routingKey.
func (c *Client) DeclareQueue(queue, routingKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := c.channel.QueueBind(queue, routingKey, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, routingKey, err)
	}
	return nil
}

// PublishDatasetLoaded announces a finished load.
func (c *Client) PublishDatasetLoaded(ctx context.Context, msg *DatasetLoadedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RoutingDatasetLoaded, msg.RunID, body)
}

// PublishAggregatesRefreshed announces a new bundle.
func (c *Client) PublishAggregatesRefreshed(ctx context.Context, msg *AggregatesRefreshedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RoutingAggregatesRefreshed, msg.RunID, body)
}

func (c *Client) publish(ctx context.Context, routingKey, runID string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    runID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	c.logger.InfoContext(ctx, "Published message",
		applog.FieldOperation, applog.OpPublish,
		applog.FieldRunID, runID,
		"exchange", c.exchangeName,
		"routing_key", routingKey)
	return nil
}

// ConsumeDatasetLoaded handles dataset.loaded messages from queue until ctx ends.
func (c *Client) ConsumeDatasetLoaded(ctx context.Context, queue string, handler func(context.Context, *DatasetLoadedMessage) error) error {
	return c.consume(ctx, queue, func(ctx context.Context, body []byte) (string, error) {
		msg, err := DatasetLoadedMessageFromJSON(body)
		if err != nil {
			return "", errMalformed{err}
		}
		return msg.RunID, handler(ctx, msg)
	})
}

// ConsumeAggregatesRefreshed handles aggregates.refreshed messages from queue until ctx ends.
func (c *Client) ConsumeAggregatesRefreshed(ctx context.Context, queue string, handler func(context.Context, *AggregatesRefreshedMessage) error) error {
	return c.consume(ctx, queue, func(ctx context.Context, body []byte) (string, error) {
		msg, err := AggregatesRefreshedMessageFromJSON(body)
		if err != nil {
			return "", errMalformed{err}
		}
		return msg.RunID, handler(ctx, msg)
	})
}

type bodyHandler func(ctx context.Context, body []byte) (runID string, err error)

func (c *Client) consume(ctx context.Context, queue string, handle bodyHandler) error {
	c.mu.Lock()
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", queue, err)
	}

	c.logger.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			dispatch(ctx, c.logger, delivery, handle)
		}
	}
}

// errMalformed marks bodies that can never be processed.
type errMalformed struct{ err error }

func (e errMalformed) Error() string { return "malformed message: " + e.err.Error() }
func (e errMalformed) Unwrap() error { return e.err }

// dispatch runs handle and settles the delivery. Malformed bodies are
// dropped; a failed handler gets one redelivery before being dropped.
func dispatch(ctx context.Context, logger *applog.Logger, d amqp091.Delivery, handle bodyHandler) {
	runID, err := handle(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			logger.ErrorContext(ctx, "Failed to ack message", applog.FieldRunID, runID, applog.FieldError, ackErr)
			return
		}
		logger.InfoContext(ctx, "Processed message", applog.FieldRunID, runID, "routing_key", d.RoutingKey)
		return
	}

	var malformed errMalformed
	requeue := !errors.As(err, &malformed) && !d.Redelivered
	logger.ErrorContext(ctx, "Failed to handle message",
		applog.FieldRunID, runID,
		applog.FieldError, err,
		"routing_key", d.RoutingKey,
		"requeue", requeue)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		logger.ErrorContext(ctx, "Failed to nack message", applog.FieldError, nackErr)
	}
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
