package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []OrderItem {
	return []OrderItem{
		{ProductID: uuid.New(), ProductName: "Keyboard", SKU: "KB-1", Quantity: 2, UnitPrice: decimal.NewFromFloat(25.00)},
		{ProductID: uuid.New(), ProductName: "Monitor", SKU: "MN-1", Quantity: 1, UnitPrice: decimal.NewFromFloat(50.00)},
	}
}

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(uuid.New(), testItems(), Address{}, Address{}, "USD")
	require.NoError(t, err)
	return o
}

func TestNewOrderValidation(t *testing.T) {
	customer := uuid.New()

	_, err := NewOrder(customer, nil, Address{}, Address{}, "USD")
	assert.ErrorIs(t, err, ErrNoItems)

	bad := testItems()
	bad[0].Quantity = 0
	_, err = NewOrder(customer, bad, Address{}, Address{}, "USD")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	bad = testItems()
	bad[1].UnitPrice = decimal.Zero
	_, err = NewOrder(customer, bad, Address{}, Address{}, "USD")
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	o, err := NewOrder(customer, testItems(), Address{}, Address{}, "")
	require.NoError(t, err)
	assert.Equal(t, OrderPending, o.Status)
	assert.Equal(t, "USD", o.Currency)
}

func TestOrderTotals(t *testing.T) {
	o := newTestOrder(t)

	// 2 x 25.00 + 1 x 50.00 = 100.00, 10% tax, flat 10.00 shipping
	assert.True(t, o.Subtotal().Equal(decimal.NewFromFloat(100.00)), "subtotal %s", o.Subtotal())
	assert.True(t, o.Tax().Equal(decimal.NewFromFloat(10.00)), "tax %s", o.Tax())
	assert.True(t, o.ShippingCost().Equal(decimal.NewFromFloat(10.00)))
	assert.True(t, o.Total().Equal(decimal.NewFromFloat(120.00)), "total %s", o.Total())
}

func TestOrderStatusMachine(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.Confirm())
	assert.Equal(t, OrderConfirmed, o.Status)

	require.NoError(t, o.MarkPaid())
	require.NoError(t, o.Ship())
	require.NoError(t, o.Deliver())
	assert.Equal(t, OrderDelivered, o.Status)

	assert.ErrorIs(t, o.Confirm(), ErrInvalidTransition)
	assert.ErrorIs(t, o.MarkPaid(), ErrInvalidTransition)
}

func TestMarkPaidFromPending(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.MarkPaid())
	assert.Equal(t, OrderPaid, o.Status)
}

func TestCancelAllowedUntilShipped(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.MarkPaid())
	require.NoError(t, o.Cancel("changed my mind"))
	assert.Equal(t, OrderCancelled, o.Status)
	assert.Equal(t, "changed my mind", o.CancelReason)

	shipped := newTestOrder(t)
	require.NoError(t, shipped.MarkPaid())
	require.NoError(t, shipped.Ship())
	assert.ErrorIs(t, shipped.Cancel("too late"), ErrNotCancellable)
	assert.Equal(t, OrderShipped, shipped.Status)
}
