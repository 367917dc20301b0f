package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
	"github.com/ecommerce-pipeline/order-pipeline/internal/repository"
)

// ProcessedPublisher publishes completion events to the downstream channel.
type ProcessedPublisher interface {
	PublishOrderProcessed(event *domain.OrderProcessed) error
}

type Engine struct {
	db        *sql.DB
	orders    *repository.OrderRepository
	inventory *repository.InventoryRepository
	publisher ProcessedPublisher
}

func New(db *sql.DB, orders *repository.OrderRepository, inventory *repository.InventoryRepository, publisher ProcessedPublisher) *Engine {
	return &Engine{
		db:        db,
		orders:    orders,
		inventory: inventory,
		publisher: publisher,
	}
}

// Process reconciles one OrderCreated delivery against inventory. It admits
// the order idempotently, verifies and decrements stock under row locks in
// a single transaction, finalizes the order status, and publishes the
// completion event on success. Exactly one of the outcomes terminates an
// order ID no matter how many times its message is delivered; a non-nil
// error leaves the delivery eligible for redelivery.
func (e *Engine) Process(ctx context.Context, event *domain.OrderCreated) (Outcome, error) {
	order := &domain.Order{
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Items:      event.Items,
		Status:     domain.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("begin transaction error: %v", err)
	}

	admitted, err := e.orders.InsertPending(ctx, tx, order)
	if err != nil {
		tx.Rollback()
		return OutcomeUnknown, err
	}
	if !admitted {
		// A prior delivery already owns this order. Stop before any
		// inventory read so duplicates never re-decrement stock.
		tx.Rollback()
		log.Info().
			Str("order_id", order.OrderID.String()).
			Msg("Order already exists, skipping duplicate delivery")
		return OutcomeDuplicate, nil
	}

	shortProduct, err := e.reserveInventory(ctx, tx, order.Items)
	if err != nil {
		tx.Rollback()
		return OutcomeUnknown, err
	}

	if shortProduct != "" {
		// Undo the PENDING insert and every decrement from this attempt,
		// then record the terminal FAILED state in a fresh transaction.
		if err := tx.Rollback(); err != nil {
			return OutcomeUnknown, fmt.Errorf("rollback error: %v", err)
		}

		if err := order.Transition(domain.StatusFailed, time.Now().UTC()); err != nil {
			return OutcomeUnknown, err
		}
		if err := e.orders.RecordFailure(ctx, order, *order.ProcessedAt); err != nil {
			return OutcomeUnknown, err
		}

		log.Warn().
			Str("order_id", order.OrderID.String()).
			Str("product_id", shortProduct).
			Msg("Insufficient inventory, order marked FAILED")
		return OutcomeFailed, nil
	}

	if err := order.Transition(domain.StatusProcessed, time.Now().UTC()); err != nil {
		tx.Rollback()
		return OutcomeUnknown, err
	}
	if err := e.orders.Finalize(ctx, tx, order); err != nil {
		tx.Rollback()
		return OutcomeUnknown, err
	}
	if err := tx.Commit(); err != nil {
		return OutcomeUnknown, fmt.Errorf("commit error: %v", err)
	}

	log.Info().
		Str("order_id", order.OrderID.String()).
		Str("customer_id", order.CustomerID).
		Msg("Order processed")

	e.publishProcessed(order)
	return OutcomeProcessed, nil
}

// reserveInventory locks, checks and decrements each line item inside the
// caller's transaction. Items are locked in product_id order so concurrent
// orders touching the same products cannot deadlock. A duplicate product
// line sees the earlier decrement and cannot oversell. Returns the first
// under-stocked product, or "" when every line item fits.
func (e *Engine) reserveInventory(ctx context.Context, tx *sql.Tx, items []domain.OrderItem) (string, error) {
	ordered := make([]domain.OrderItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ProductID < ordered[j].ProductID
	})

	for _, item := range ordered {
		available, found, err := e.inventory.LockQuantity(ctx, tx, item.ProductID)
		if err != nil {
			return "", err
		}
		if !found || available < item.Quantity {
			return item.ProductID, nil
		}
		if err := e.inventory.Decrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return "", err
		}
	}

	return "", nil
}

// publishProcessed emits the completion event. A failed publish does not
// undo the committed order; the downstream channel is best-effort and the
// order and inventory state are already correct.
func (e *Engine) publishProcessed(order *domain.Order) {
	event := &domain.OrderProcessed{
		OrderID:     order.OrderID,
		CustomerID:  order.CustomerID,
		Status:      string(domain.StatusProcessed),
		ProcessedAt: *order.ProcessedAt,
	}

	if err := e.publisher.PublishOrderProcessed(event); err != nil {
		log.Error().
			Err(err).
			Str("order_id", order.OrderID.String()).
			Msg("Failed to publish OrderProcessed event")
	}
}
