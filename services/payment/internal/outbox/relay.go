package outbox

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopstream/services/payment/internal/observability"
)

// Claimer hands out batches of pending records.
type Claimer interface {
	Claim(ctx context.Context, limit int) (Batch, error)
}

// Publisher sends events to a message broker. Publish returns only after the
// broker acknowledges the write.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox and pushes pending records to Kafka. Delivery is
// at-least-once: a crash between a broker ack and the status commit means the
// record is published again on the next poll, and consumers dedupe.
type Relay struct {
	Store          Claimer
	Producer       Publisher
	Topics         map[string]string // aggregate type -> topic
	Service        string
	BatchSize      int
	PollInterval   time.Duration
	PublishTimeout time.Duration
}

type TickStats struct {
	Claimed   int
	Published int
	Failed    int
	Terminal  int
}

func (r *Relay) Start(ctx context.Context) {
	log := observability.GetLogger(ctx)
	log.Info("outbox relay started",
		zap.String("service", r.Service),
		zap.Duration("poll_interval", r.PollInterval),
		zap.Int("batch_size", r.BatchSize))

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox relay stopping", zap.String("service", r.Service))
			return
		case <-ticker.C:
			start := time.Now()
			if _, err := r.Tick(ctx); err != nil {
				log.Error("outbox tick failed", zap.Error(err))
			}
			observability.OutboxTickDuration.WithLabelValues(r.Service).
				Observe(time.Since(start).Seconds())
		}
	}
}

// Tick claims one batch and works through it record by record. A failing
// record is counted and skipped; it never blocks the rest of the batch.
func (r *Relay) Tick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	ctx, span := otel.Tracer("outbox").Start(ctx, "outbox.tick")
	defer span.End()

	batch, err := r.Store.Claim(ctx, r.BatchSize)
	if err != nil {
		span.RecordError(err)
		return stats, err
	}

	records := batch.Records()
	if len(records) == 0 {
		batch.Rollback()
		return stats, nil
	}
	stats.Claimed = len(records)
	span.SetAttributes(attribute.Int("outbox.claimed", stats.Claimed))

	log := observability.GetLogger(ctx)
	for _, rec := range records {
		topic, ok := r.Topics[rec.AggregateType]
		if !ok {
			// Unroutable records go through the same retry bookkeeping
			// as publish failures so they terminate in FAILED instead
			// of being re-claimed every tick.
			if err := r.fail(ctx, batch, rec, "unknown",
				fmt.Errorf("no topic mapping for aggregate type %q", rec.AggregateType),
				&stats, log); err != nil {
				batch.Rollback()
				return stats, err
			}
			continue
		}

		if err := r.publish(ctx, topic, rec); err != nil {
			if markErr := r.fail(ctx, batch, rec, topic, err, &stats, log); markErr != nil {
				batch.Rollback()
				return stats, markErr
			}
			continue
		}

		if err := batch.MarkCompleted(ctx, rec.ID); err != nil {
			batch.Rollback()
			return stats, err
		}
		stats.Published++
		observability.OutboxPublishedTotal.WithLabelValues(r.Service, topic).Inc()
	}

	return stats, batch.Commit()
}

// fail records one failed attempt for rec and handles the terminal case.
func (r *Relay) fail(ctx context.Context, batch Batch, rec *Record, topic string, cause error, stats *TickStats, log *zap.Logger) error {
	stats.Failed++
	observability.OutboxPublishFailuresTotal.WithLabelValues(r.Service, topic).Inc()

	terminal, err := batch.MarkFailed(ctx, rec.ID, cause.Error())
	if err != nil {
		return err
	}
	if terminal {
		stats.Terminal++
		observability.OutboxTerminalFailuresTotal.WithLabelValues(r.Service, topic).Inc()
		log.Error("outbox record exhausted retries",
			zap.String("record_id", rec.ID.String()),
			zap.String("aggregate_id", rec.AggregateID.String()),
			zap.String("event_type", rec.EventType),
			zap.Int("retry_count", rec.RetryCount+1),
			zap.Error(cause))
	} else {
		log.Warn("outbox publish failed, will retry",
			zap.String("record_id", rec.ID.String()),
			zap.String("event_type", rec.EventType),
			zap.Error(cause))
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, topic string, rec *Record) error {
	pubCtx, cancel := context.WithTimeout(ctx, r.PublishTimeout)
	defer cancel()
	return r.Producer.Publish(pubCtx, topic, []byte(rec.AggregateID.String()), rec.Payload)
}
