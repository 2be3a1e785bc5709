package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPaid      OrderStatus = "PAID"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var (
	taxRate      = decimal.NewFromFloat(0.10)
	shippingFlat = decimal.NewFromFloat(10.00)
)

type OrderItem struct {
	ProductID   uuid.UUID
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Order is the aggregate root for a customer order. Money amounts are
// derived, never stored: subtotal from the items, 10% tax on the subtotal,
// flat shipping.
type Order struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	Status          OrderStatus
	Items           []OrderItem
	ShippingAddress Address
	BillingAddress  Address
	Currency        string
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewOrder(customerID uuid.UUID, items []OrderItem, shipping, billing Address, currency string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, it.SKU)
		}
		if !it.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidUnitPrice, it.SKU)
		}
	}
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	return &Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Status:          OrderPending,
		Items:           items,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ReconstructOrder rebuilds an order from persisted state without validation.
func ReconstructOrder(
	id, customerID uuid.UUID,
	status OrderStatus,
	items []OrderItem,
	shipping, billing Address,
	currency, cancelReason string,
	createdAt, updatedAt time.Time,
) *Order {
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		Status:          status,
		Items:           items,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Currency:        currency,
		CancelReason:    cancelReason,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
}

func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func (o *Order) Tax() decimal.Decimal {
	return o.Subtotal().Mul(taxRate).Round(2)
}

func (o *Order) ShippingCost() decimal.Decimal {
	return shippingFlat
}

func (o *Order) Total() decimal.Decimal {
	return o.Subtotal().Add(o.Tax()).Add(o.ShippingCost())
}

func (o *Order) Confirm() error {
	return o.transition(OrderConfirmed, OrderPending)
}

// MarkPaid records a successful payment. An order may still be PENDING when
// the payment event arrives, so both PENDING and CONFIRMED are accepted.
func (o *Order) MarkPaid() error {
	return o.transition(OrderPaid, OrderPending, OrderConfirmed)
}

func (o *Order) Ship() error {
	return o.transition(OrderShipped, OrderPaid)
}

func (o *Order) Deliver() error {
	return o.transition(OrderDelivered, OrderShipped)
}

// Cancel is allowed until the order ships.
func (o *Order) Cancel(reason string) error {
	switch o.Status {
	case OrderPending, OrderConfirmed, OrderPaid:
		o.Status = OrderCancelled
		o.CancelReason = reason
		o.UpdatedAt = time.Now().UTC()
		return nil
	default:
		return fmt.Errorf("%w: status %s", ErrNotCancellable, o.Status)
	}
}

func (o *Order) transition(to OrderStatus, from ...OrderStatus) error {
	for _, f := range from {
		if o.Status == f {
			o.Status = to
			o.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
}
