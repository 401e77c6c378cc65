/*
errors.go - Centralized error types for the generic engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages should wrap these errors with additional context.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Validation errors - Malformed amounts, dates and keys
  3. Lookup errors - Missing students, teachers, records

USAGE:
  Domain packages can wrap generic errors:

    if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
        // already recorded, safe to ignore
    }

SEE ALSO:
  - ledger.go: Uses these errors
  - store.go: Uses these errors
  - fees/service.go: Adds fee specific sentinels
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInvalidAmount is returned when a payment amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidDateKey is returned when a yyyy-MM-dd or yyyy-MM key cannot be parsed.
	ErrInvalidDateKey = errors.New("invalid date key")

	// ErrEntityNotFound is returned when a referenced student or teacher doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "student", "teacher", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrEntityNotFound
}

// DateKeyError reports which key failed to parse and the expected layout.
type DateKeyError struct {
	Value  string
	Layout string
}

func (e *DateKeyError) Error() string {
	return fmt.Sprintf("invalid date key %q (want %s)", e.Value, e.Layout)
}

func (e *DateKeyError) Unwrap() error {
	return ErrInvalidDateKey
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDateKey) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the write collided with an existing record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
