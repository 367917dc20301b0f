package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
	"github.com/ecommerce-pipeline/order-pipeline/internal/messaging"
	"github.com/ecommerce-pipeline/order-pipeline/internal/repository"
)

type stubPublisher struct {
	events []*domain.OrderProcessed
	err    error
}

func (s *stubPublisher) PublishOrderProcessed(event *domain.OrderProcessed) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock, *stubPublisher) {
	t.Helper()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	publisher := &stubPublisher{}
	eng := New(db, repository.NewOrderRepository(db), repository.NewInventoryRepository(db), publisher)
	return eng, mock, publisher
}

func orderCreated(items ...domain.OrderItem) *domain.OrderCreated {
	return &domain.OrderCreated{
		OrderID:    domain.ComputeOrderID("cust-A", items),
		CustomerID: "cust-A",
		Items:      items,
	}
}

func TestProcess_SufficientStock(t *testing.T) {
	eng, mock, publisher := newTestEngine(t)
	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 1})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(50))
	mock.ExpectExec("UPDATE inventory SET quantity_available").
		WithArgs("P1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Len(t, publisher.events, 1)
	assert.Equal(t, event.OrderID, publisher.events[0].OrderID)
	assert.Equal(t, "cust-A", publisher.events[0].CustomerID)
	assert.Equal(t, "PROCESSED", publisher.events[0].Status)
	assert.False(t, publisher.events[0].ProcessedAt.IsZero())
}

func TestProcess_InsufficientStockRollsBackAndRecordsFailure(t *testing.T) {
	eng, mock, publisher := newTestEngine(t)
	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 5})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(0))
	mock.ExpectRollback()

	// failure recorded in a fresh transaction after the rollback
	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(order_id\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, publisher.events)
}

func TestProcess_DuplicateDeliverySkips(t *testing.T) {
	eng, mock, publisher := newTestEngine(t)
	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 1})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	// no inventory statement ran, no event emitted
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, publisher.events)
}

func TestProcess_StorageErrorSurfacesForRedelivery(t *testing.T) {
	eng, mock, publisher := newTestEngine(t)
	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 1})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	outcome, err := eng.Process(context.Background(), event)

	assert.Error(t, err)
	assert.Equal(t, OutcomeUnknown, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, publisher.events)
}

func TestProcess_PublishFailureDoesNotUndoCommit(t *testing.T) {
	eng, mock, publisher := newTestEngine(t)
	publisher.err = errors.New("broker unavailable")
	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 1})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(50))
	mock.ExpectExec("UPDATE inventory SET quantity_available").
		WithArgs("P1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_LocksProductsInCanonicalOrder(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	// payload order P2 then P1; locks must still go P1 then P2
	event := orderCreated(
		domain.OrderItem{ProductID: "P2", Quantity: 2},
		domain.OrderItem{ProductID: "P1", Quantity: 1},
	)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(10))
	mock.ExpectExec("UPDATE inventory SET quantity_available").
		WithArgs("P1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P2").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(10))
	mock.ExpectExec("UPDATE inventory SET quantity_available").
		WithArgs("P2", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_ShortCircuitsOnFirstInsufficientItem(t *testing.T) {
	eng, mock, publisher := newTestEngine(t)
	event := orderCreated(
		domain.OrderItem{ProductID: "P1", Quantity: 1},
		domain.OrderItem{ProductID: "P2", Quantity: 200},
		domain.OrderItem{ProductID: "P3", Quantity: 1},
	)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(10))
	mock.ExpectExec("UPDATE inventory SET quantity_available").
		WithArgs("P1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P2").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(100))
	// P3 is never locked: the scan stops at the short item
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(order_id\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, publisher.events)
}

func TestProcess_UnknownProductFails(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	event := orderCreated(domain.OrderItem{ProductID: "GHOST", Quantity: 1})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("GHOST").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(order_id\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestProcess_FailureRecordingErrorSurfaces(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 5})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(0))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(order_id\\) DO UPDATE").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	outcome, err := eng.Process(context.Background(), event)

	assert.Error(t, err)
	assert.Equal(t, OutcomeUnknown, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_DuplicateProductLinesSeeEarlierDecrement(t *testing.T) {
	eng, mock, publisher := newTestEngine(t)
	// 4 in stock; the lines fit individually but not together
	event := orderCreated(
		domain.OrderItem{ProductID: "P1", Quantity: 2},
		domain.OrderItem{ProductID: "P1", Quantity: 3},
	)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(4))
	mock.ExpectExec("UPDATE inventory SET quantity_available").
		WithArgs("P1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// the second line re-reads the row and sees the first decrement
	mock.ExpectQuery("SELECT quantity_available FROM inventory").
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"quantity_available"}).AddRow(2))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(order_id\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := eng.Process(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, publisher.events)
}

func TestHandleDelivery_MalformedBodyIsPermanent(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	handler := NewHandler(eng)

	err := handler.HandleDelivery(context.Background(), []byte("{not json"))

	assert.Error(t, err)
	assert.True(t, messaging.IsPermanent(err))
}

func TestHandleDelivery_ResolvesBusinessOutcomes(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	handler := NewHandler(eng)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 1})
	body, err := json.Marshal(event)
	assert.NoError(t, err)

	assert.NoError(t, handler.HandleDelivery(context.Background(), body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleDelivery_StorageErrorPropagates(t *testing.T) {
	eng, mock, _ := newTestEngine(t)
	handler := NewHandler(eng)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	event := orderCreated(domain.OrderItem{ProductID: "P1", Quantity: 1})
	body, err := json.Marshal(event)
	assert.NoError(t, err)

	err = handler.HandleDelivery(context.Background(), body)
	assert.Error(t, err)
	assert.False(t, messaging.IsPermanent(err))
}
