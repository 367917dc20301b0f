package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeOrderID_SameContentSameID(t *testing.T) {
	items := []OrderItem{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	}

	first := ComputeOrderID("cust-A", items)
	second := ComputeOrderID("cust-A", items)

	assert.Equal(t, first, second)
}

func TestComputeOrderID_DifferentContentDifferentID(t *testing.T) {
	base := []OrderItem{{ProductID: "P1", Quantity: 2}}

	id := ComputeOrderID("cust-A", base)

	assert.NotEqual(t, id, ComputeOrderID("cust-B", base))
	assert.NotEqual(t, id, ComputeOrderID("cust-A", []OrderItem{{ProductID: "P1", Quantity: 3}}))
	assert.NotEqual(t, id, ComputeOrderID("cust-A", []OrderItem{{ProductID: "P2", Quantity: 2}}))
}

func TestComputeOrderID_ItemOrderMatters(t *testing.T) {
	forward := []OrderItem{
		{ProductID: "P1", Quantity: 1},
		{ProductID: "P2", Quantity: 1},
	}
	reversed := []OrderItem{
		{ProductID: "P2", Quantity: 1},
		{ProductID: "P1", Quantity: 1},
	}

	assert.NotEqual(t, ComputeOrderID("cust-A", forward), ComputeOrderID("cust-A", reversed))
}

func TestOrderStatus_CanTransition(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusProcessed))
	assert.True(t, StatusPending.CanTransition(StatusFailed))
	assert.True(t, StatusFailed.CanTransition(StatusFailed))

	assert.False(t, StatusProcessed.CanTransition(StatusFailed))
	assert.False(t, StatusProcessed.CanTransition(StatusProcessed))
	assert.False(t, StatusFailed.CanTransition(StatusProcessed))
	assert.False(t, StatusPending.CanTransition(StatusPending))
}

func TestOrder_Transition(t *testing.T) {
	order := &Order{Status: StatusPending}
	at := time.Now().UTC()

	err := order.Transition(StatusProcessed, at)

	assert.NoError(t, err)
	assert.Equal(t, StatusProcessed, order.Status)
	assert.NotNil(t, order.ProcessedAt)
	assert.Equal(t, at, *order.ProcessedAt)
}

func TestOrder_TransitionRejectsTerminalOrder(t *testing.T) {
	order := &Order{Status: StatusProcessed}

	err := order.Transition(StatusFailed, time.Now())

	assert.Error(t, err)
	assert.Equal(t, StatusProcessed, order.Status)
	assert.Nil(t, order.ProcessedAt)
}
