// Package events defines the wire contracts shared by the order and payment
// services. Payloads are JSON; every payload carries the outbox record id of
// the event that produced it as EventID, which downstream consumers use as
// their deduplication key.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kafka topics. Events for one aggregate are published with the aggregate id
// as the message key, so per-aggregate ordering holds within a partition.
const (
	TopicOrderEvents   = "order-events"
	TopicPaymentEvents = "payment-events"
)

// Aggregate types carried on outbox records; the relay maps them to topics.
const (
	AggregateOrder   = "Order"
	AggregatePayment = "Payment"
)

// Event types.
const (
	OrderCreated       = "ORDER_CREATED"
	OrderStatusChanged = "ORDER_STATUS_CHANGED"
	PaymentCompleted   = "PAYMENT_COMPLETED"
	PaymentFailed      = "PAYMENT_FAILED"
	PaymentRefunded    = "PAYMENT_REFUNDED"
)

type OrderItemPayload struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type OrderEventPayload struct {
	EventID    uuid.UUID          `json:"eventId"`
	EventType  string             `json:"eventType"`
	OrderID    uuid.UUID          `json:"orderId"`
	CustomerID uuid.UUID          `json:"customerId"`
	Status     string             `json:"status"`
	Total      decimal.Decimal    `json:"total"`
	Currency   string             `json:"currency"`
	Items      []OrderItemPayload `json:"items,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

type PaymentEventPayload struct {
	EventID       uuid.UUID       `json:"eventId"`
	EventType     string          `json:"eventType"`
	PaymentID     uuid.UUID       `json:"paymentId"`
	OrderID       uuid.UUID       `json:"orderId"`
	CustomerID    uuid.UUID       `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
