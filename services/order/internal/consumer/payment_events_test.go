package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopstream/contracts/events"
)

type stubService struct {
	calls []events.PaymentEventPayload
	err   error
}

func (s *stubService) HandlePaymentEvent(ctx context.Context, evt events.PaymentEventPayload) error {
	s.calls = append(s.calls, evt)
	return s.err
}

func TestHandlePaymentOutcomes(t *testing.T) {
	for _, eventType := range []string{events.PaymentCompleted, events.PaymentFailed} {
		svc := &stubService{}
		h := NewPaymentEvents(svc)

		value, err := json.Marshal(events.PaymentEventPayload{
			EventID:   uuid.New(),
			EventType: eventType,
			OrderID:   uuid.New(),
		})
		require.NoError(t, err)

		require.NoError(t, h.Handle(context.Background(), value))
		require.Len(t, svc.calls, 1, eventType)
		assert.Equal(t, eventType, svc.calls[0].EventType)
	}
}

func TestHandleMalformedPayloadDropped(t *testing.T) {
	svc := &stubService{}
	h := NewPaymentEvents(svc)

	assert.NoError(t, h.Handle(context.Background(), []byte("{broken")))
	assert.Empty(t, svc.calls)
}

func TestHandleIgnoresUnknownEventTypes(t *testing.T) {
	svc := &stubService{}
	h := NewPaymentEvents(svc)

	value, err := json.Marshal(events.PaymentEventPayload{
		EventID:   uuid.New(),
		EventType: "PAYMENT_AUTHORIZED",
	})
	require.NoError(t, err)

	assert.NoError(t, h.Handle(context.Background(), value))
	assert.Empty(t, svc.calls)
}

func TestHandlePropagatesServiceError(t *testing.T) {
	svc := &stubService{err: errors.New("order lookup failed")}
	h := NewPaymentEvents(svc)

	value, err := json.Marshal(events.PaymentEventPayload{
		EventID:   uuid.New(),
		EventType: events.PaymentCompleted,
		OrderID:   uuid.New(),
	})
	require.NoError(t, err)

	assert.Error(t, h.Handle(context.Background(), value))
}
