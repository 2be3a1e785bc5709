package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopstream/contracts/events"
	"shopstream/services/order/internal/domain"
	"shopstream/services/order/internal/ledger"
	"shopstream/services/order/internal/observability"
	"shopstream/services/order/internal/outbox"
)

// OrderRepository is the persistence surface the service needs.
type OrderRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, o *domain.Order) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, o *domain.Order) error
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

// OrderService owns order lifecycle logic. Every state change and its
// outgoing event are written in one transaction; inbound payment events are
// deduplicated through the ledger in that same transaction.
type OrderService struct {
	repo   OrderRepository
	outbox OutboxAppender
	ledger LedgerStore
	tx     Transactor
}

func NewOrderService(repo OrderRepository, ob OutboxAppender, lg LedgerStore, tx Transactor) *OrderService {
	return &OrderService{repo: repo, outbox: ob, ledger: lg, tx: tx}
}

// CreateOrder persists a new order together with its ORDER_CREATED outbox
// record. If either write fails, neither happens.
func (s *OrderService) CreateOrder(
	ctx context.Context,
	customerID uuid.UUID,
	items []domain.OrderItem,
	shipping, billing domain.Address,
	currency string,
) (*domain.Order, error) {
	order, err := domain.NewOrder(customerID, items, shipping, billing, currency)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		if err := s.appendOrderEvent(ctx, tx, order, events.OrderCreated); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.GetLogger(ctx).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("total", order.Total().String()))
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// ConfirmOrder moves a pending order to CONFIRMED and emits an
// ORDER_STATUS_CHANGED event in the same transaction.
func (s *OrderService) ConfirmOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := order.Confirm(); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return s.appendOrderEvent(ctx, tx, order, events.OrderStatusChanged)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels an order on a customer's request and emits an
// ORDER_STATUS_CHANGED event in the same transaction.
func (s *OrderService) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := order.Cancel(reason); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return s.appendOrderEvent(ctx, tx, order, events.OrderStatusChanged)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// HandlePaymentEvent applies the outcome of a payment to its order. The
// ledger check, the status change, the chained outbox record and the ledger
// insert share one transaction, so a duplicate delivery either short-circuits
// on the existence check or hits the ledger's unique constraint and rolls the
// whole effect back. Both cases report success to the consumer.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, evt events.PaymentEventPayload) error {
	log := observability.GetLogger(ctx)

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		seen, err := s.ledger.Exists(ctx, tx, evt.EventID)
		if err != nil {
			return err
		}
		if seen {
			return ledger.ErrDuplicateEvent
		}

		order, err := s.repo.GetForUpdate(ctx, tx, evt.OrderID)
		if err != nil {
			return err
		}

		switch evt.EventType {
		case events.PaymentCompleted:
			if err := order.MarkPaid(); err != nil {
				return err
			}
		case events.PaymentFailed:
			reason := evt.FailureReason
			if reason == "" {
				reason = "payment failed"
			}
			if err := order.Cancel(reason); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected payment event type %q", evt.EventType)
		}

		if err := s.repo.UpdateStatus(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if err := s.appendOrderEvent(ctx, tx, order, events.OrderStatusChanged); err != nil {
			return err
		}
		return s.ledger.Record(ctx, tx, evt.EventID, evt.EventType)
	})

	if errors.Is(err, ledger.ErrDuplicateEvent) {
		log.Info("duplicate payment event skipped",
			zap.String("event_id", evt.EventID.String()),
			zap.String("order_id", evt.OrderID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("payment event applied",
		zap.String("event_id", evt.EventID.String()),
		zap.String("order_id", evt.OrderID.String()),
		zap.String("event_type", evt.EventType))
	return nil
}

// appendOrderEvent builds and stores an outbox record for the order's current
// state. The record id is fixed first and embedded in the payload as the
// event id, so republished records keep the same identity downstream.
func (s *OrderService) appendOrderEvent(ctx context.Context, tx *sql.Tx, o *domain.Order, eventType string) error {
	recID := uuid.New()

	items := make([]events.OrderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.OrderItemPayload{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	payload, err := json.Marshal(events.OrderEventPayload{
		EventID:    recID,
		EventType:  eventType,
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		Total:      o.Total(),
		Currency:   o.Currency,
		Items:      items,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	rec, err := outbox.NewRecordWithID(recID, o.ID, events.AggregateOrder, eventType, payload)
	if err != nil {
		return err
	}
	if err := s.outbox.InsertTx(ctx, tx, rec); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
