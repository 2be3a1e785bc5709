package outbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

var (
	ErrTerminalRecord = errors.New("outbox record is in a terminal state")
	ErrEmptyPayload   = errors.New("outbox record payload must not be empty")
	ErrEmptyEventType = errors.New("outbox record event type must not be empty")
)

// Record is one row of the transactional outbox. It is written in the same
// database transaction as the business change it describes and later picked
// up by the relay.
type Record struct {
	ID            uuid.UUID
	AggregateID   uuid.UUID
	AggregateType string
	EventType     string
	Payload       []byte
	Status        Status
	RetryCount    int
	FailReason    string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

func NewRecord(aggregateID uuid.UUID, aggregateType, eventType string, payload []byte) (*Record, error) {
	return NewRecordWithID(uuid.New(), aggregateID, aggregateType, eventType, payload)
}

// NewRecordWithID lets the caller fix the record id up front so the id can be
// embedded in the payload before the record is built.
func NewRecordWithID(id, aggregateID uuid.UUID, aggregateType, eventType string, payload []byte) (*Record, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	if aggregateType == "" {
		return nil, errors.New("outbox record aggregate type must not be empty")
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	return &Record{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a record from persisted columns without validation.
func Reconstruct(
	id, aggregateID uuid.UUID,
	aggregateType, eventType string,
	payload []byte,
	status Status,
	retryCount int,
	failReason string,
	createdAt time.Time,
	processedAt *time.Time,
) *Record {
	return &Record{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		Status:        status,
		RetryCount:    retryCount,
		FailReason:    failReason,
		CreatedAt:     createdAt,
		ProcessedAt:   processedAt,
	}
}

func (r *Record) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// MarkCompleted transitions the record to COMPLETED and stamps ProcessedAt.
// Terminal records are never touched again.
func (r *Record) MarkCompleted(now time.Time) error {
	if r.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalRecord, r.ID, r.Status)
	}
	r.Status = StatusCompleted
	r.ProcessedAt = &now
	return nil
}

// MarkFailed counts one delivery attempt. The record stays PENDING and
// eligible for the next poll until the attempt count reaches maxRetries, at
// which point it flips to FAILED for good. Returns whether this attempt was
// the terminal one.
func (r *Record) MarkFailed(reason string, maxRetries int) (terminal bool, err error) {
	if r.IsTerminal() {
		return false, fmt.Errorf("%w: %s is %s", ErrTerminalRecord, r.ID, r.Status)
	}
	r.RetryCount++
	r.FailReason = reason
	if r.RetryCount >= maxRetries {
		r.Status = StatusFailed
		return true, nil
	}
	return false, nil
}
