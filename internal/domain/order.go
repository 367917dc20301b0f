package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusProcessed OrderStatus = "PROCESSED"
	StatusFailed    OrderStatus = "FAILED"
)

// CanTransition reports whether moving from s to target is a legal status
// change. PENDING is the only non-terminal state; a FAILED row may be
// refreshed by repeated failure recording.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessed || target == StatusFailed
	case StatusFailed:
		return target == StatusFailed
	default:
		return false
	}
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	OrderID     uuid.UUID
	CustomerID  string
	Items       []OrderItem
	Status      OrderStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Transition moves the order to a terminal status, stamping processed_at.
func (o *Order) Transition(target OrderStatus, at time.Time) error {
	if !o.Status.CanTransition(target) {
		return fmt.Errorf("illegal status transition: %s -> %s", o.Status, target)
	}
	o.Status = target
	o.ProcessedAt = &at
	return nil
}

// orderIDNamespace fixes the UUID namespace for content-addressed order IDs.
var orderIDNamespace = uuid.MustParse("1b671a64-40d5-491e-99b0-da01ff1f3341")

// ComputeOrderID derives a stable identifier from the order content, so
// resubmitting the same customer/items pair always yields the same ID.
func ComputeOrderID(customerID string, items []OrderItem) uuid.UUID {
	payload := struct {
		C string      `json:"c"`
		I []OrderItem `json:"i"`
	}{C: customerID, I: items}

	canonical, _ := json.Marshal(payload)
	return uuid.NewMD5(orderIDNamespace, canonical)
}
