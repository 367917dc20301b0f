package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// StockLevel is one row of the inventory table.
type StockLevel struct {
	ProductID         string
	QuantityAvailable int
}

// LockQuantity reads a product's available quantity under an exclusive row
// lock, blocking other transactions touching the same product until the
// caller commits or rolls back. found=false means the product does not exist.
func (r *InventoryRepository) LockQuantity(ctx context.Context, tx *sql.Tx, productID string) (int, bool, error) {
	query := `SELECT quantity_available FROM inventory WHERE product_id = $1 FOR UPDATE`

	var quantity int
	err := tx.QueryRowContext(ctx, query, productID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("inventory lock error: %v", err)
	}

	return quantity, true, nil
}

// Decrement subtracts quantity inside the caller's transaction. The caller
// has already validated sufficiency under the row lock.
func (r *InventoryRepository) Decrement(ctx context.Context, tx *sql.Tx, productID string, quantity int) error {
	query := `UPDATE inventory SET quantity_available = quantity_available - $2 WHERE product_id = $1`

	if _, err := tx.ExecContext(ctx, query, productID, quantity); err != nil {
		return fmt.Errorf("inventory decrement error: %v", err)
	}

	return nil
}

// Snapshot returns every product with its available quantity, ordered by
// product_id. Used by the inspection tool.
func (r *InventoryRepository) Snapshot(ctx context.Context) ([]StockLevel, error) {
	query := `SELECT product_id, quantity_available FROM inventory ORDER BY product_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("inventory retrieval error: %v", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var level StockLevel
		if err := rows.Scan(&level.ProductID, &level.QuantityAvailable); err != nil {
			return nil, fmt.Errorf("inventory scan error: %v", err)
		}
		levels = append(levels, level)
	}

	return levels, rows.Err()
}
