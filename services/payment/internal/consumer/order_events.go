package consumer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"shopstream/contracts/events"
	"shopstream/services/payment/internal/observability"
)

// PaymentService is the slice of the service layer this consumer needs.
type PaymentService interface {
	ProcessOrderEvent(ctx context.Context, evt events.OrderEventPayload) error
}

// OrderEvents handles messages from the order-events topic. Malformed
// payloads are logged and dropped so they do not wedge the partition; there
// is no dead-letter path for them.
type OrderEvents struct {
	svc PaymentService
}

func NewOrderEvents(svc PaymentService) *OrderEvents {
	return &OrderEvents{svc: svc}
}

func (h *OrderEvents) Handle(ctx context.Context, value []byte) error {
	log := observability.GetLogger(ctx)

	var evt events.OrderEventPayload
	if err := json.Unmarshal(value, &evt); err != nil {
		observability.ConsumerEventsTotal.WithLabelValues("payment", events.TopicOrderEvents, "malformed").Inc()
		log.Warn("malformed order event dropped", zap.Error(err))
		return nil
	}

	// Only newly created orders trigger a charge; status changes are
	// informational here.
	if evt.EventType != events.OrderCreated {
		log.Debug("ignoring order event type", zap.String("event_type", evt.EventType))
		return nil
	}

	return h.svc.ProcessOrderEvent(ctx, evt)
}
