package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreated is published by the intake gateway once per logical order.
// The channel may deliver it more than once.
type OrderCreated struct {
	OrderID    uuid.UUID   `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderItem `json:"items"`
	Timestamp  time.Time   `json:"timestamp"`
}

// OrderProcessed is published at most once per order, only after the
// inventory commit succeeds.
type OrderProcessed struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  string    `json:"customer_id"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}
