package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// DeliveryHandler processes one delivery. A nil return acknowledges the
// message; an error requeues it for redelivery unless it is Permanent.
type DeliveryHandler func(ctx context.Context, body []byte) error

type Consumer struct {
	client      *RabbitMQClient
	queueName   string
	consumerTag string
	workers     int
	maxRetries  int
	republishFn func(msg amqp.Delivery, headers amqp.Table) error
}

func NewConsumer(client *RabbitMQClient, queueName, consumerTag string, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	c := &Consumer{
		client:      client,
		queueName:   queueName,
		consumerTag: consumerTag,
		workers:     workers,
		maxRetries:  client.config.RetryCount,
	}
	c.republishFn = c.publishRetry
	return c
}

// Consume binds the durable queue to the routing keys and dispatches
// deliveries to the worker pool. Each worker handles one message at a
// time; prefetch is bounded by the worker count.
func (c *Consumer) Consume(routingKeys []string, handler DeliveryHandler) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("no connection to RabbitMQ")
	}

	channel := c.client.Channel()

	queue, err := channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("queue declare error: %v", err)
	}

	for _, routingKey := range routingKeys {
		err = channel.QueueBind(
			queue.Name,               // queue name
			routingKey,               // routing key
			c.client.config.Exchange, // exchange
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("queue bind error (%s): %v", routingKey, err)
		}
		log.Printf("Queue %s bound to routing key: %s", queue.Name, routingKey)
	}

	if err := channel.Qos(c.workers, 0, false); err != nil {
		return fmt.Errorf("qos error: %v", err)
	}

	deliveries, err := channel.Consume(
		queue.Name,    // queue
		c.consumerTag, // consumer
		false,         // auto-ack off, we ack only after handling
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("consume start error: %v", err)
	}

	for i := 0; i < c.workers; i++ {
		go c.worker(deliveries, handler)
	}

	log.Printf("Consuming on queue %s with %d workers", queue.Name, c.workers)
	return nil
}

func (c *Consumer) worker(deliveries <-chan amqp.Delivery, handler DeliveryHandler) {
	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(msg, handler)
		case <-c.client.ctx.Done():
			log.Printf("Consumer worker stopped: %s", c.consumerTag)
			return
		}
	}
}

func (c *Consumer) handleDelivery(msg amqp.Delivery, handler DeliveryHandler) {
	err := handler(c.client.ctx, msg.Body)
	if err == nil {
		msg.Ack(false)
		return
	}

	if IsPermanent(err) {
		log.Printf("Dead-lettering message %s, it can never succeed: %v", msg.MessageId, err)
		msg.Nack(false, false)
		return
	}

	retries := retryCount(msg)
	if retries >= c.maxRetries {
		log.Printf("Max retries reached for message %s (%d attempts), dead-lettering", msg.MessageId, retries)
		msg.Nack(false, false)
		return
	}

	c.republish(msg, retries+1)
}

// retryCount reads the redelivery attempt counter carried on the message.
func retryCount(msg amqp.Delivery) int {
	if v, ok := msg.Headers["x-retry-count"]; ok {
		switch n := v.(type) {
		case int32:
			return int(n)
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}

func (c *Consumer) republish(msg amqp.Delivery, attempt int) {
	time.Sleep(c.client.config.RetryDelay)

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int32(attempt)

	if err := c.republishFn(msg, headers); err != nil {
		log.Printf("Retry publish error: %v", err)
		msg.Nack(false, true)
		return
	}

	msg.Ack(false)
	log.Printf("Re-queued message %s (attempt %d/%d)", msg.MessageId, attempt, c.maxRetries)
}

func (c *Consumer) publishRetry(msg amqp.Delivery, headers amqp.Table) error {
	return c.client.Channel().Publish(
		msg.Exchange,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			DeliveryMode: msg.DeliveryMode,
			MessageId:    msg.MessageId,
			Headers:      headers,
		},
	)
}
