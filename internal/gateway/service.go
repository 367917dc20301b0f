package gateway

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
)

// CreatedPublisher publishes OrderCreated events to the processing channel.
type CreatedPublisher interface {
	PublishOrderCreated(event *domain.OrderCreated) error
}

type Service struct {
	publisher CreatedPublisher
}

func NewService(publisher CreatedPublisher) *Service {
	return &Service{publisher: publisher}
}

// AcceptOrder derives the content-addressed order ID and hands the order to
// the processing channel. The same logical request always yields the same
// order ID, so edge retries collapse to one order downstream.
func (s *Service) AcceptOrder(request *OrderRequest) (uuid.UUID, error) {
	orderID := domain.ComputeOrderID(request.CustomerID, request.Items)

	event := &domain.OrderCreated{
		OrderID:    orderID,
		CustomerID: request.CustomerID,
		Items:      request.Items,
		Timestamp:  time.Now().UTC(),
	}

	if err := s.publisher.PublishOrderCreated(event); err != nil {
		return uuid.Nil, fmt.Errorf("order created event publish error: %v", err)
	}

	log.Info().
		Str("order_id", orderID.String()).
		Str("customer_id", request.CustomerID).
		Int("item_count", len(request.Items)).
		Msg("Order accepted")

	return orderID, nil
}
