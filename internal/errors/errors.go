package errors

import (
	"errors"
	"fmt"
)

// Webhook and order processing errors. The distinction matters at the HTTP
// boundary: only ErrBadSignature maps to 401, and only ErrStoreUnavailable
// during order creation maps to a non-2xx so the gateway redelivers. Every
// other failure is acknowledged, since retrying cannot fix it.
var (
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrDuplicateOrder   = errors.New("order already exists")
	ErrOrderNotFound    = errors.New("order not found")
	ErrStoreUnavailable = errors.New("order store unavailable")
	ErrGatewayError     = errors.New("payment gateway error")
	ErrInvalidInput     = errors.New("invalid input")
)

// ValidationError represents a validation error on a request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// StoreError represents an order-store failure with the failing operation
type StoreError struct {
	Operation string
	Err       error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Operation, e.Err)
}

func (e StoreError) Unwrap() error {
	return e.Err
}

// GatewayError carries the gateway's HTTP status alongside its message
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

func (e GatewayError) Unwrap() error {
	return ErrGatewayError
}

// EventError marks an inbound event as permanently unprocessable and records
// which part of the payload violated the contract.
type EventError struct {
	Reason string
	Err    error
}

func (e EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unprocessable event (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unprocessable event (%s)", e.Reason)
}

func (e EventError) Unwrap() error {
	return ErrMalformedEvent
}
