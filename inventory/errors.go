/*
errors.go - Centralized error types for the stock ledger

ERROR CATEGORIES:
  1. Validation errors - Malformed movement or catalog input (client)
  2. Catalog errors    - Not found, duplicate ID, still referenced (client)
  3. Store errors      - Persistence failures (system)

USAGE:
  mv, err := ledger.Append(ctx, req)
  var verr *inventory.ValidationError
  if errors.As(err, &verr) && verr.Reason == inventory.ReasonUnknownProduct {
      ...
  }

Nothing in this package retries. Append assigns a fresh identity on every
call, so a blind retry would record the movement twice.
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when deleting a catalog entry that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when inserting a product or location whose
	// ID already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrDuplicateIdempotencyKey is returned when a movement with the same
	// idempotency key was already appended.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrReferenced is returned by strict catalogs when deleting an entry
	// that movements still point at.
	ErrReferenced = errors.New("referenced by movements")

	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// ValidationReason is a stable, machine-readable rejection code.
type ValidationReason string

const (
	ReasonMissingEndpoints    ValidationReason = "missing_endpoints"
	ReasonNonPositiveQuantity ValidationReason = "non_positive_quantity"
	ReasonUnknownProduct      ValidationReason = "unknown_product"
	ReasonUnknownLocation     ValidationReason = "unknown_location"
	ReasonMissingID           ValidationReason = "missing_id"
	ReasonMissingName         ValidationReason = "missing_name"
)

// ValidationError describes why an input was rejected. No state changes
// when it is returned.
type ValidationError struct {
	Reason  ValidationReason
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(reason ValidationReason, field, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// STORAGE ERROR
// =============================================================================

// StorageError wraps a persistence failure with the operation that hit it.
// It matches both ErrStorage and the underlying driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// StorageFailure wraps err as a *StorageError unless it is nil or already a
// domain error that stores pass through unchanged.
func StorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || IsNotFound(err) || IsConflict(err)
}

// IsNotFound returns true if the error indicates a missing catalog entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the request clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrReferenced)
}
