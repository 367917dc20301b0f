package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
)

const (
	RoutingKeyOrderCreated   = "orders.created"
	RoutingKeyOrderProcessed = "orders.processed"
)

type Publisher struct {
	client *RabbitMQClient
}

func NewPublisher(client *RabbitMQClient) *Publisher {
	return &Publisher{
		client: client,
	}
}

func (p *Publisher) PublishOrderCreated(event *domain.OrderCreated) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return p.publish(RoutingKeyOrderCreated, event.OrderID.String(), event)
}

func (p *Publisher) PublishOrderProcessed(event *domain.OrderProcessed) error {
	return p.publish(RoutingKeyOrderProcessed, event.OrderID.String(), event)
}

func (p *Publisher) publish(routingKey, messageID string, payload interface{}) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("no connection to RabbitMQ")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("event serialization error: %v", err)
	}

	var lastErr error
	for i := 0; i < p.client.config.RetryCount; i++ {
		lastErr = p.client.Channel().Publish(
			p.client.config.Exchange,
			routingKey,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent, // survive broker restarts
				MessageId:    messageID,
				Timestamp:    time.Now(),
			},
		)
		if lastErr == nil {
			log.Printf("Event published: %s (message_id=%s)", routingKey, messageID)
			return nil
		}

		log.Printf("Publish error (attempt %d/%d): %v", i+1, p.client.config.RetryCount, lastErr)
		if i < p.client.config.RetryCount-1 {
			time.Sleep(p.client.config.RetryDelay)
		}
	}

	return fmt.Errorf("event publish failed after %d attempts: %v", p.client.config.RetryCount, lastErr)
}
