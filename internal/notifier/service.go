package notifier

import (
	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
)

// Service performs the customer-facing side effect for completed orders.
// It keeps no state; the log line stands in for a real delivery channel.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) NotifyOrderProcessed(event *domain.OrderProcessed) {
	log.Info().
		Str("order_id", event.OrderID.String()).
		Str("customer_id", event.CustomerID).
		Time("processed_at", event.ProcessedAt).
		Msg("Notification sent for processed order")
}
