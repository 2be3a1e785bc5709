package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment(uuid.New(), uuid.New(), decimal.NewFromFloat(120.00), "USD")
	require.NoError(t, err)
	return p
}

func TestNewPaymentValidation(t *testing.T) {
	_, err := NewPayment(uuid.New(), uuid.New(), decimal.Zero, "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(-5), "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	p, err := NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(50), "")
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, p.Status)
	assert.Equal(t, MethodCreditCard, p.Method)
	assert.Equal(t, "USD", p.Currency)
}

func TestPaymentHappyPath(t *testing.T) {
	p := newTestPayment(t)

	require.NoError(t, p.StartProcessing())
	assert.Equal(t, PaymentProcessing, p.Status)

	require.NoError(t, p.Complete("TXN-abc"))
	assert.Equal(t, PaymentCompleted, p.Status)
	assert.Equal(t, "TXN-abc", p.TransactionID)

	require.NoError(t, p.Refund())
	assert.Equal(t, PaymentRefunded, p.Status)
}

func TestPaymentTransitionGuards(t *testing.T) {
	p := newTestPayment(t)

	// Complete requires processing first.
	assert.ErrorIs(t, p.Complete("TXN-early"), ErrInvalidTransition)

	require.NoError(t, p.StartProcessing())
	assert.ErrorIs(t, p.StartProcessing(), ErrInvalidTransition)
	assert.ErrorIs(t, p.Refund(), ErrInvalidTransition)

	require.NoError(t, p.Fail("gateway timeout"))
	assert.Equal(t, PaymentFailed, p.Status)
	assert.Equal(t, "gateway timeout", p.FailureReason)

	assert.ErrorIs(t, p.Complete("TXN-late"), ErrInvalidTransition)
	assert.ErrorIs(t, p.Fail("again"), ErrInvalidTransition)
}

func TestFailFromPending(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.Fail("INSUFFICIENT_FUNDS"))
	assert.Equal(t, PaymentFailed, p.Status)
}
