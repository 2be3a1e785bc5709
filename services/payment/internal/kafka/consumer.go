package kafka

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopstream/services/payment/internal/observability"
)

// Handler processes one inbound message. Returning nil acknowledges the
// message; returning an error leaves its offset uncommitted so it is
// redelivered after a restart or rebalance.
type Handler interface {
	Handle(ctx context.Context, value []byte) error
}

// Consumer reads from one topic as part of a consumer group and feeds each
// message to a Handler. Offsets are committed manually, only after the
// handler succeeds.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	service string
	topic   string
}

func NewConsumer(brokers []string, topic, groupID, service string, h Handler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		handler: h,
		service: service,
		topic:   topic,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log := observability.GetLogger(ctx)
	log.Info("consumer started",
		zap.String("service", c.service),
		zap.String("topic", c.topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("consumer stopping", zap.String("topic", c.topic))
				return
			}
			log.Error("fetch failed", zap.String("topic", c.topic), zap.Error(err))
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			observability.ConsumerEventsTotal.WithLabelValues(c.service, c.topic, "error").Inc()
			log.Error("handler failed, offset not committed",
				zap.String("topic", c.topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("offset commit failed",
				zap.String("topic", c.topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		observability.ConsumerEventsTotal.WithLabelValues(c.service, c.topic, "handled").Inc()
	}
}

// handle runs the handler inside a span linked to the producer's trace,
// extracted from the message headers.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &msg.Headers})

	ctx, span := otel.Tracer("kafka.consumer").Start(ctx, "consume "+c.topic)
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.kafka.topic", c.topic),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	err := c.handler.Handle(ctx, msg.Value)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (c *Consumer) Close() error { return c.reader.Close() }
