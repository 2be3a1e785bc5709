// Package ledger tracks which inbound events have already been applied. The
// primary key on event_id is the dedup mechanism: two transactions racing on
// the same event cannot both commit a ledger row.
package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrDuplicateEvent = errors.New("event already processed")

type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Exists(ctx context.Context, tx *sql.Tx, eventID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, eventID).Scan(&exists)
	} else {
		err = l.db.QueryRowContext(ctx, query, eventID).Scan(&exists)
	}
	return exists, err
}

// Record inserts the ledger row for eventID. A unique violation means another
// transaction got there first; callers treat ErrDuplicateEvent as "already
// handled" and roll back their business effect.
func (l *Ledger) Record(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, eventType string) error {
	query := `INSERT INTO processed_events (event_id, event_type, processed_at) VALUES ($1, $2, NOW())`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, eventID, eventType)
	} else {
		_, err = l.db.ExecContext(ctx, query, eventID, eventType)
	}
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

func mapInsertError(err error) error {
	if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
		return ErrDuplicateEvent
	}
	return err
}
