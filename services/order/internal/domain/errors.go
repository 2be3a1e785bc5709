package domain

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNoItems           = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("item quantity must be positive")
	ErrInvalidUnitPrice  = errors.New("item unit price must be positive")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotCancellable    = errors.New("order can no longer be cancelled")
)
