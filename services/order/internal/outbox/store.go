package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Batch is a claimed set of pending records plus the open transaction that
// holds their row locks. Status updates ride on that transaction; nothing is
// visible to other relays until Commit.
type Batch interface {
	Records() []*Record
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// MarkFailed counts one failed attempt and reports whether the record
	// just exhausted its retries.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (terminal bool, err error)
	Commit() error
	Rollback() error
}

// Store persists outbox records in Postgres.
type Store struct {
	DB         *sql.DB
	MaxRetries int
}

func NewStore(db *sql.DB, maxRetries int) *Store {
	return &Store{DB: db, MaxRetries: maxRetries}
}

// InsertTx appends a record inside the caller's transaction. This is the only
// write path for new records: the business change and its event commit or
// roll back together.
func (s *Store) InsertTx(ctx context.Context, tx *sql.Tx, rec *Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events
			(id, aggregate_id, aggregate_type, event_type, payload, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.AggregateID, rec.AggregateType, rec.EventType, rec.Payload,
		rec.Status, rec.RetryCount, rec.CreatedAt)
	return err
}

// Claim opens a transaction and locks up to limit pending records, oldest
// first. SKIP LOCKED lets concurrent relays claim disjoint sets instead of
// blocking on each other.
func (s *Store) Claim(ctx context.Context, limit int) (Batch, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
		       status, retry_count, COALESCE(fail_reason, ''), created_at, processed_at
		FROM outbox_events
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			id, aggregateID          uuid.UUID
			aggregateType, eventType string
			payload                  []byte
			status                   Status
			retryCount               int
			failReason               string
			createdAt                sql.NullTime
			processedAt              sql.NullTime
		)
		if err := rows.Scan(&id, &aggregateID, &aggregateType, &eventType, &payload,
			&status, &retryCount, &failReason, &createdAt, &processedAt); err != nil {
			tx.Rollback()
			return nil, err
		}

		var pAt *time.Time
		if processedAt.Valid {
			t := processedAt.Time
			pAt = &t
		}
		records = append(records, Reconstruct(
			id, aggregateID, aggregateType, eventType, payload,
			status, retryCount, failReason, createdAt.Time, pAt,
		))
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return nil, err
	}

	return &sqlBatch{tx: tx, records: records, maxRetries: s.MaxRetries}, nil
}

// ListFailed returns records that exhausted their retries, newest first. This
// backs the operator endpoint that stands in for alerting.
func (s *Store) ListFailed(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
		       status, retry_count, COALESCE(fail_reason, ''), created_at, processed_at
		FROM outbox_events
		WHERE status = 'FAILED'
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			id, aggregateID          uuid.UUID
			aggregateType, eventType string
			payload                  []byte
			status                   Status
			retryCount               int
			failReason               string
			createdAt                sql.NullTime
			processedAt              sql.NullTime
		)
		if err := rows.Scan(&id, &aggregateID, &aggregateType, &eventType, &payload,
			&status, &retryCount, &failReason, &createdAt, &processedAt); err != nil {
			return nil, err
		}

		var pAt *time.Time
		if processedAt.Valid {
			t := processedAt.Time
			pAt = &t
		}
		records = append(records, Reconstruct(
			id, aggregateID, aggregateType, eventType, payload,
			status, retryCount, failReason, createdAt.Time, pAt,
		))
	}
	return records, rows.Err()
}

type sqlBatch struct {
	tx         *sql.Tx
	records    []*Record
	maxRetries int
}

func (b *sqlBatch) Records() []*Record { return b.records }

func (b *sqlBatch) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := b.tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'COMPLETED', processed_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, id)
	return err
}

func (b *sqlBatch) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	var status Status
	err := b.tx.QueryRowContext(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
		    fail_reason = $2,
		    status = CASE WHEN retry_count + 1 >= $3 THEN 'FAILED' ELSE 'PENDING' END
		WHERE id = $1 AND status = 'PENDING'
		RETURNING status
	`, id, reason, b.maxRetries).Scan(&status)
	if err != nil {
		return false, err
	}
	return status == StatusFailed, nil
}

func (b *sqlBatch) Commit() error   { return b.tx.Commit() }
func (b *sqlBatch) Rollback() error { return b.tx.Rollback() }
