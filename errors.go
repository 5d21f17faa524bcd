package settle

import (
	"errors"
	"fmt"

	"github.com/xraph/settle/types"
)

// Sentinel errors for common failure scenarios. Every one of them aborts the
// enclosing invocation; callers observe no state change and no asset movement.
var (
	// Lifecycle errors
	ErrUninitialized      = errors.New("settle: contract not initialized")
	ErrAlreadyInitialized = errors.New("settle: contract already initialized")

	// Access errors
	ErrUnauthorized = errors.New("settle: unauthorized")
	ErrForbidden    = errors.New("settle: forbidden")

	// Record errors
	ErrNotFound     = errors.New("settle: not found")
	ErrInvalidInput = errors.New("settle: invalid input")
	ErrInvalidState = errors.New("settle: invalid state")

	// Arithmetic errors
	ErrOverflow = types.ErrOverflow

	// Asset errors
	ErrInsufficientBalance = errors.New("settle: insufficient balance")
	ErrFrozen              = errors.New("settle: account frozen")
	ErrNoAsset             = errors.New("settle: asset contract not registered")

	// Store errors
	ErrStoreClosed  = errors.New("settle: store is closed")
	ErrCommitFailed = errors.New("settle: commit failed")
	ErrReadOnly     = errors.New("settle: write attempted in read-only call")
	ErrConflict     = errors.New("settle: state changed since it was read")
)

// ValidationError represents an argument that failed validation. It unwraps
// to ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("settle: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthError returns true if the caller failed to prove or match the required principal.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsValidation returns true if the error was caused by a malformed argument.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, types.ErrInvalidShares) ||
		errors.Is(err, types.ErrNotInteger) ||
		errors.Is(err, types.ErrInvalidAddress)
}

// IsStateError returns true if the record or contract was in the wrong state for the call.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrUninitialized) ||
		errors.Is(err, ErrAlreadyInitialized)
}

// IsAssetError returns true if the Asset Transfer Interface refused the movement.
func IsAssetError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrFrozen) ||
		errors.Is(err, ErrNoAsset)
}
