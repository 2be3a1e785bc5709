package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "CREDIT_CARD"
)

// Payment is the aggregate for one payment attempt against an order.
type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	CustomerID    uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPayment(orderID, customerID uuid.UUID, amount decimal.Decimal, currency string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	return &Payment{
		ID:         uuid.New(),
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     amount,
		Currency:   currency,
		Method:     MethodCreditCard,
		Status:     PaymentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ReconstructPayment rebuilds a payment from persisted state without validation.
func ReconstructPayment(
	id, orderID, customerID uuid.UUID,
	amount decimal.Decimal,
	currency string,
	method PaymentMethod,
	status PaymentStatus,
	transactionID, failureReason string,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		ID:            id,
		OrderID:       orderID,
		CustomerID:    customerID,
		Amount:        amount,
		Currency:      currency,
		Method:        method,
		Status:        status,
		TransactionID: transactionID,
		FailureReason: failureReason,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

func (p *Payment) StartProcessing() error {
	if p.Status != PaymentPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, PaymentProcessing)
	}
	p.Status = PaymentProcessing
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete records the gateway transaction id and finishes the payment.
func (p *Payment) Complete(transactionID string) error {
	if p.Status != PaymentProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, PaymentCompleted)
	}
	p.Status = PaymentCompleted
	p.TransactionID = transactionID
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) Fail(reason string) error {
	if p.Status != PaymentPending && p.Status != PaymentProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, PaymentFailed)
	}
	p.Status = PaymentFailed
	p.FailureReason = reason
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) Refund() error {
	if p.Status != PaymentCompleted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, PaymentRefunded)
	}
	p.Status = PaymentRefunded
	p.UpdatedAt = time.Now().UTC()
	return nil
}
