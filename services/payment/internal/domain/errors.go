package domain

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidAmount     = errors.New("payment amount must be positive")
	ErrInvalidTransition = errors.New("invalid payment status transition")
)
