package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// InsertPending admits the order with a conflict-tolerant insert inside the
// caller's transaction. The primary-key constraint, not application logic,
// decides "already exists": a zero row count means a prior delivery owns
// this order.
func (r *OrderRepository) InsertPending(ctx context.Context, tx *sql.Tx, order *domain.Order) (bool, error) {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return false, fmt.Errorf("items serialization error: %v", err)
	}

	query := `
		INSERT INTO orders (order_id, customer_id, items, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, query,
		order.OrderID,
		order.CustomerID,
		itemsJSON,
		domain.StatusPending,
		order.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("order insert error: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order insert result error: %v", err)
	}

	return rows > 0, nil
}

// Finalize persists the order's terminal status and processed_at inside the
// caller's transaction.
func (r *OrderRepository) Finalize(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $2, processed_at = $3
		WHERE order_id = $1
	`

	result, err := tx.ExecContext(ctx, query, order.OrderID, order.Status, order.ProcessedAt)
	if err != nil {
		return fmt.Errorf("order finalize error: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order not found: %s", order.OrderID)
	}

	return nil
}

// RecordFailure upserts the FAILED terminal state in its own transaction.
// The main transaction has already been rolled back when this runs, so the
// PENDING row no longer exists; a redelivered failure simply refreshes the
// existing FAILED row.
func (r *OrderRepository) RecordFailure(ctx context.Context, order *domain.Order, processedAt time.Time) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("items serialization error: %v", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failure record begin error: %v", err)
	}

	query := `
		INSERT INTO orders (order_id, customer_id, items, status, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO UPDATE SET status = EXCLUDED.status, processed_at = EXCLUDED.processed_at
	`

	_, err = tx.ExecContext(ctx, query,
		order.OrderID,
		order.CustomerID,
		itemsJSON,
		domain.StatusFailed,
		order.CreatedAt,
		processedAt,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failure record error: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failure record commit error: %v", err)
	}

	return nil
}

// List returns all orders, newest first. Used by the inspection tool.
func (r *OrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	query := `
		SELECT order_id, customer_id, items, status, created_at, processed_at
		FROM orders
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("orders retrieval error: %v", err)
	}
	defer rows.Close()

	var orders []*domain.Order

	for rows.Next() {
		order := &domain.Order{}
		var itemsJSON []byte
		var processedAt sql.NullTime

		err := rows.Scan(
			&order.OrderID,
			&order.CustomerID,
			&itemsJSON,
			&order.Status,
			&order.CreatedAt,
			&processedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("order scan error: %v", err)
		}

		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("items deserialization error: %v", err)
		}

		if processedAt.Valid {
			order.ProcessedAt = &processedAt.Time
		}

		orders = append(orders, order)
	}

	return orders, rows.Err()
}
