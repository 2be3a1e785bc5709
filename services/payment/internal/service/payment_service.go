package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopstream/contracts/events"
	"shopstream/services/payment/internal/domain"
	"shopstream/services/payment/internal/ledger"
	"shopstream/services/payment/internal/observability"
	"shopstream/services/payment/internal/outbox"
)

// Stand-in for a real payment gateway: amounts above the limit are declined.
var insufficientFundsLimit = decimal.NewFromInt(10000)

const reasonInsufficientFunds = "INSUFFICIENT_FUNDS"

// PaymentRepository is the persistence surface the service needs.
type PaymentRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
}

// OutboxAppender writes outbox records inside the caller's transaction.
type OutboxAppender interface {
	InsertTx(ctx context.Context, tx *sql.Tx, rec *outbox.Record) error
}

// LedgerStore tracks processed inbound events.
type LedgerStore interface {
	Exists(ctx context.Context, tx *sql.Tx, eventID uuid.UUID) (bool, error)
	Record(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, eventType string) error
}

// Transactor runs a function inside a database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
}

// PaymentService processes orders into payments. The ledger check, the
// payment row, the chained outbox record and the ledger insert share one
// transaction, so a crash or duplicate delivery can never half-apply an
// event.
type PaymentService struct {
	repo   PaymentRepository
	outbox OutboxAppender
	ledger LedgerStore
	tx     Transactor
}

func NewPaymentService(repo PaymentRepository, ob OutboxAppender, lg LedgerStore, tx Transactor) *PaymentService {
	return &PaymentService{repo: repo, outbox: ob, ledger: lg, tx: tx}
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.repo.Get(ctx, id)
}

func (s *PaymentService) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

// RefundPayment refunds a completed payment and emits a PAYMENT_REFUNDED
// event through the outbox in the same transaction.
func (s *PaymentService) RefundPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		payment, err = s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := payment.Refund(); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, payment); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		return s.appendPaymentEvent(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	observability.GetLogger(ctx).Info("payment refunded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", payment.OrderID.String()))
	return payment, nil
}

// ProcessOrderEvent charges a newly created order. Deduplication: a known
// event id short-circuits before any effect; when two transactions race on
// the same event the ledger's unique constraint fails one of them, the
// losing transaction rolls back completely, and both deliveries report
// success to the consumer.
func (s *PaymentService) ProcessOrderEvent(ctx context.Context, evt events.OrderEventPayload) error {
	log := observability.GetLogger(ctx)

	var payment *domain.Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		seen, err := s.ledger.Exists(ctx, tx, evt.EventID)
		if err != nil {
			return err
		}
		if seen {
			return ledger.ErrDuplicateEvent
		}

		payment, err = s.charge(evt)
		if err != nil {
			return err
		}

		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		if err := s.appendPaymentEvent(ctx, tx, payment); err != nil {
			return err
		}
		return s.ledger.Record(ctx, tx, evt.EventID, evt.EventType)
	})

	if errors.Is(err, ledger.ErrDuplicateEvent) {
		log.Info("duplicate order event skipped",
			zap.String("event_id", evt.EventID.String()),
			zap.String("order_id", evt.OrderID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("order event processed",
		zap.String("event_id", evt.EventID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(payment.Status)))
	return nil
}

// charge runs the simulated gateway call and returns the finished payment.
func (s *PaymentService) charge(evt events.OrderEventPayload) (*domain.Payment, error) {
	payment, err := domain.NewPayment(evt.OrderID, evt.CustomerID, evt.Total, evt.Currency)
	if err != nil {
		return nil, err
	}

	if payment.Amount.GreaterThan(insufficientFundsLimit) {
		if err := payment.Fail(reasonInsufficientFunds); err != nil {
			return nil, err
		}
		return payment, nil
	}

	if err := payment.StartProcessing(); err != nil {
		return nil, err
	}
	if err := payment.Complete("TXN-" + uuid.NewString()); err != nil {
		return nil, err
	}
	return payment, nil
}

// appendPaymentEvent stores the PAYMENT_COMPLETED or PAYMENT_FAILED outbox
// record for the payment's outcome. The record id doubles as the payload's
// event id so downstream dedup survives republishes.
func (s *PaymentService) appendPaymentEvent(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	recID := uuid.New()

	var eventType string
	switch p.Status {
	case domain.PaymentFailed:
		eventType = events.PaymentFailed
	case domain.PaymentRefunded:
		eventType = events.PaymentRefunded
	default:
		eventType = events.PaymentCompleted
	}

	payload, err := json.Marshal(events.PaymentEventPayload{
		EventID:       recID,
		EventType:     eventType,
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	rec, err := outbox.NewRecordWithID(recID, p.ID, events.AggregatePayment, eventType, payload)
	if err != nil {
		return err
	}
	if err := s.outbox.InsertTx(ctx, tx, rec); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
