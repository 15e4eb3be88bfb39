package credits

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("credits: not found")
	ErrAlreadyExists = errors.New("credits: already exists")
	ErrInvalidInput  = errors.New("credits: invalid input")

	// Pricing errors
	ErrPricingNotFound = errors.New("credits: pricing not found")

	// Balance and ledger errors
	ErrAccountNotFound     = errors.New("credits: account not found")
	ErrInsufficientCredits = errors.New("credits: insufficient credits")
	ErrAlreadyDebited      = errors.New("credits: operation already debited")
	ErrAlreadyCredited     = errors.New("credits: reference already credited")

	// Settlement errors
	ErrOperationNotFound = errors.New("credits: operation not found")
	// ErrOperationNotOwned also matches ErrOperationNotFound.
	ErrOperationNotOwned = fmt.Errorf("%w: not owned by user", ErrOperationNotFound)
	ErrInvalidState      = errors.New("credits: operation is not completed")
	ErrFlagUpdateFailed  = errors.New("credits: credits deducted but operation flag update failed")

	// Store errors
	ErrStoreFailure    = errors.New("credits: store failure")
	ErrStoreClosed     = errors.New("credits: store is closed")
	ErrMigrationFailed = errors.New("credits: migration failed")

	// Cache errors
	ErrCacheMiss = errors.New("credits: cache miss")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("credits: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "credits: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("credits: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// StoreError wraps a driver error as ErrStoreFailure while keeping the cause.
func StoreError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPricingNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrOperationNotFound) ||
		errors.Is(err, ErrOperationNotOwned)
}

// IsPaymentRequired returns true if the caller should be asked to top up.
func IsPaymentRequired(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreFailure) ||
		errors.Is(err, ErrFlagUpdateFailed)
}
