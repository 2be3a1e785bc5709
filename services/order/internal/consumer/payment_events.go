package consumer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"shopstream/contracts/events"
	"shopstream/services/order/internal/observability"
)

// OrderService is the slice of the service layer this consumer needs.
type OrderService interface {
	HandlePaymentEvent(ctx context.Context, evt events.PaymentEventPayload) error
}

// PaymentEvents handles messages from the payment-events topic. Malformed
// payloads are logged and dropped so they do not wedge the partition; there
// is no dead-letter path for them.
type PaymentEvents struct {
	svc OrderService
}

func NewPaymentEvents(svc OrderService) *PaymentEvents {
	return &PaymentEvents{svc: svc}
}

func (h *PaymentEvents) Handle(ctx context.Context, value []byte) error {
	log := observability.GetLogger(ctx)

	var evt events.PaymentEventPayload
	if err := json.Unmarshal(value, &evt); err != nil {
		observability.ConsumerEventsTotal.WithLabelValues("order", events.TopicPaymentEvents, "malformed").Inc()
		log.Warn("malformed payment event dropped", zap.Error(err))
		return nil
	}

	switch evt.EventType {
	case events.PaymentCompleted, events.PaymentFailed:
		return h.svc.HandlePaymentEvent(ctx, evt)
	default:
		log.Debug("ignoring payment event type", zap.String("event_type", evt.EventType))
		return nil
	}
}
