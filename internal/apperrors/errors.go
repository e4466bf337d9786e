// Package apperrors defines the error taxonomy shared by the wallet,
// referral and checkout services. Handlers map these onto HTTP statuses.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrDuplicateReferralCode  = errors.New("could not allocate a unique referral code")
	ErrCycleDetected          = errors.New("referral cycle detected")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrencyConflict    = errors.New("concurrent update conflict")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// GatewayError wraps a failed payment gateway call. Transient errors
// (timeouts, 5xx) may be retried by the caller; permanent ones must not.
type GatewayError struct {
	Op        string
	Status    int
	Transient bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed (status %d): %v", e.Op, e.Status, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Transient
}
