package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError rejects malformed or out-of-range input before it
// reaches the book. Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + e.Reason
}

// UnknownSymbolError means the symbol is not tradable on this exchange.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return "unknown symbol: " + e.Symbol
}

// NotFoundError means the referenced order is not resting on any book,
// including the case where a cancel lost the race to an in-flight fill.
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return "order not resting: " + e.OrderID
}

// AuthorizationError means the caller does not own the referenced order.
type AuthorizationError struct {
	OrderID string
	UserID  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s does not own order %s", e.UserID, e.OrderID)
}

// InsufficientFundsError rejects a submission that fails the optional
// affordability check.
type InsufficientFundsError struct {
	UserID    string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for user %s: need %s, have %s",
		e.UserID, e.Required, e.Available)
}
