package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestLockQuantity_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT quantity_available FROM inventory WHERE product_id = (.+) FOR UPDATE").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(50))

	tx, err := db.Begin()
	assert.NoError(t, err)

	repo := NewInventoryRepository(db)
	quantity, found, err := repo.LockQuantity(context.Background(), tx, "P1")

	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 50, quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockQuantity_UnknownProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}))

	tx, err := db.Begin()
	assert.NoError(t, err)

	repo := NewInventoryRepository(db)
	_, found, err := repo.LockQuantity(context.Background(), tx, "NOPE")

	assert.NoError(t, err)
	assert.False(t, found)
}

func TestDecrement(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE inventory SET quantity_available = quantity_available - (.+)").
		WithArgs("P1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	assert.NoError(t, err)

	repo := NewInventoryRepository(db)
	err = repo.Decrement(context.Background(), tx, "P1", 3)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"product_id", "quantity_available"}).
		AddRow("P1", 49).
		AddRow("P2", 100)

	mock.ExpectQuery("SELECT product_id, quantity_available FROM inventory").
		WillReturnRows(rows)

	repo := NewInventoryRepository(db)
	levels, err := repo.Snapshot(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []StockLevel{{"P1", 49}, {"P2", 100}}, levels)
}
