package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopstream/contracts/events"
	"shopstream/services/order/internal/domain"
	"shopstream/services/order/internal/ledger"
	"shopstream/services/order/internal/outbox"
)

// ---- fakes ----

type fakeRepo struct {
	orders    map[uuid.UUID]*domain.Order
	insertErr error
	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[uuid.UUID]*domain.Order{}}
}

func (r *fakeRepo) Insert(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

type fakeOutbox struct {
	records   []*outbox.Record
	insertErr error
}

func (f *fakeOutbox) InsertTx(ctx context.Context, tx *sql.Tx, rec *outbox.Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeLedger struct {
	seen      map[uuid.UUID]string
	recordErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: map[uuid.UUID]string{}}
}

func (l *fakeLedger) Exists(ctx context.Context, tx *sql.Tx, eventID uuid.UUID) (bool, error) {
	_, ok := l.seen[eventID]
	return ok, nil
}

func (l *fakeLedger) Record(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, eventType string) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	if _, ok := l.seen[eventID]; ok {
		return ledger.ErrDuplicateEvent
	}
	l.seen[eventID] = eventType
	return nil
}

// fakeTx snapshots the fakes before the callback and restores them when it
// returns an error, mirroring a real rollback.
type fakeTx struct {
	repo   *fakeRepo
	outbox *fakeOutbox
	ledger *fakeLedger
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	orders := make(map[uuid.UUID]*domain.Order, len(f.repo.orders))
	for k, v := range f.repo.orders {
		cp := *v
		orders[k] = &cp
	}
	records := append([]*outbox.Record(nil), f.outbox.records...)
	seen := make(map[uuid.UUID]string, len(f.ledger.seen))
	for k, v := range f.ledger.seen {
		seen[k] = v
	}

	if err := fn(ctx, nil); err != nil {
		f.repo.orders = orders
		f.outbox.records = records
		f.ledger.seen = seen
		return err
	}
	return nil
}

type fixture struct {
	repo   *fakeRepo
	outbox *fakeOutbox
	ledger *fakeLedger
	svc    *OrderService
}

func newFixture() *fixture {
	repo := newFakeRepo()
	ob := &fakeOutbox{}
	lg := newFakeLedger()
	return &fixture{
		repo:   repo,
		outbox: ob,
		ledger: lg,
		svc:    NewOrderService(repo, ob, lg, &fakeTx{repo: repo, outbox: ob, ledger: lg}),
	}
}

func testItems() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductID: uuid.New(), ProductName: "Keyboard", SKU: "KB-1", Quantity: 2, UnitPrice: decimal.NewFromFloat(25.00)},
	}
}

func paymentEvent(orderID uuid.UUID, eventType, failureReason string) events.PaymentEventPayload {
	return events.PaymentEventPayload{
		EventID:       uuid.New(),
		EventType:     eventType,
		PaymentID:     uuid.New(),
		OrderID:       orderID,
		CustomerID:    uuid.New(),
		Amount:        decimal.NewFromFloat(65.00),
		Currency:      "USD",
		FailureReason: failureReason,
		Timestamp:     time.Now().UTC(),
	}
}

// ---- tests ----

func TestCreateOrderWritesOutboxInSameTransaction(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{City: "Austin"}, domain.Address{City: "Austin"}, "USD")
	require.NoError(t, err)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, stored.Status)

	require.Len(t, f.outbox.records, 1)
	rec := f.outbox.records[0]
	assert.Equal(t, events.OrderCreated, rec.EventType)
	assert.Equal(t, events.AggregateOrder, rec.AggregateType)
	assert.Equal(t, order.ID, rec.AggregateID)
	assert.Equal(t, outbox.StatusPending, rec.Status)

	var payload events.OrderEventPayload
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, rec.ID, payload.EventID)
	assert.Equal(t, order.ID, payload.OrderID)
	assert.True(t, payload.Total.Equal(order.Total()))
}

func TestCreateOrderRollsBackWhenOutboxFails(t *testing.T) {
	f := newFixture()
	f.outbox.insertErr = errors.New("disk full")

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.Error(t, err)

	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.outbox.records)
}

func TestCancelOrderEmitsStatusChange(t *testing.T) {
	f := newFixture()
	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.NoError(t, err)

	cancelled, err := f.svc.CancelOrder(context.Background(), order.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)

	require.Len(t, f.outbox.records, 2)
	assert.Equal(t, events.OrderStatusChanged, f.outbox.records[1].EventType)
}

func TestConfirmOrderEmitsStatusChange(t *testing.T) {
	f := newFixture()
	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, confirmed.Status)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, stored.Status)

	require.Len(t, f.outbox.records, 2)
	rec := f.outbox.records[1]
	assert.Equal(t, events.OrderStatusChanged, rec.EventType)

	var payload events.OrderEventPayload
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, rec.ID, payload.EventID)
	assert.Equal(t, "CONFIRMED", payload.Status)
}

func TestConfirmOrderRequiresPending(t *testing.T) {
	f := newFixture()
	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(context.Background(), order.ID, "changed my mind")
	require.NoError(t, err)

	_, err = f.svc.ConfirmOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Len(t, f.outbox.records, 2)
}

func TestHandlePaymentCompletedMarksOrderPaid(t *testing.T) {
	f := newFixture()
	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.NoError(t, err)

	evt := paymentEvent(order.ID, events.PaymentCompleted, "")
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, stored.Status)

	require.Len(t, f.outbox.records, 2)
	rec := f.outbox.records[1]
	assert.Equal(t, events.OrderStatusChanged, rec.EventType)

	var payload events.OrderEventPayload
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, string(domain.OrderPaid), payload.Status)

	assert.Contains(t, f.ledger.seen, evt.EventID)
}

func TestHandlePaymentFailedCancelsOrder(t *testing.T) {
	f := newFixture()
	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.NoError(t, err)

	evt := paymentEvent(order.ID, events.PaymentFailed, "INSUFFICIENT_FUNDS")
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, stored.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", stored.CancelReason)
}

func TestHandlePaymentEventDuplicateIsNoOp(t *testing.T) {
	f := newFixture()
	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.NoError(t, err)

	evt := paymentEvent(order.ID, events.PaymentCompleted, "")
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, stored.Status)

	// Only the create + the first status change made it to the outbox.
	assert.Len(t, f.outbox.records, 2)
	assert.Len(t, f.ledger.seen, 1)
}

func TestHandlePaymentEventLedgerRaceRollsBackEffect(t *testing.T) {
	f := newFixture()
	order, err := f.svc.CreateOrder(context.Background(), uuid.New(), testItems(),
		domain.Address{}, domain.Address{}, "USD")
	require.NoError(t, err)

	// The existence check misses, but the insert loses the race.
	f.ledger.recordErr = ledger.ErrDuplicateEvent

	evt := paymentEvent(order.ID, events.PaymentCompleted, "")
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), evt))

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, stored.Status)
	assert.Len(t, f.outbox.records, 1)
}

func TestHandlePaymentEventUnknownOrderFails(t *testing.T) {
	f := newFixture()

	evt := paymentEvent(uuid.New(), events.PaymentCompleted, "")
	err := f.svc.HandlePaymentEvent(context.Background(), evt)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Empty(t, f.ledger.seen)
}
