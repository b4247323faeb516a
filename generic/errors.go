/*
errors.go - Centralized error types for the ledger primitives

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Ledger errors - Transaction validation and persistence failures
  2. Lookup errors - Missing profiles or definitions
  3. Store errors - Closed or unavailable stores

USAGE:
  if errors.Is(err, generic.ErrAppendFailed) {
      // surface to the caregiver, do not retry automatically
  }

SEE ALSO:
  - ledger.go: Uses these errors
  - consequence/engine.go: AppendError wraps ErrAppendFailed
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
	// ErrAppendFailed is returned when a transaction cannot be persisted
	// (connectivity, permissions, quota).
	ErrAppendFailed = errors.New("append to transaction log failed")

	// ErrInvalidTransaction is returned when a transaction is rejected before
	// reaching the store (unknown type, wrong sign, missing fields).
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrDuplicateTransaction is returned when a transaction ID already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrProfileNotFound is returned when a referenced profile doesn't exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrUnknownConsequence is returned when a consequence type is not
	// defined for the profile.
	ErrUnknownConsequence = errors.New("unknown consequence type")

	// ErrStoreClosed is returned by stores after Close.
	ErrStoreClosed = errors.New("store closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError explains why a transaction was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTransaction
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransaction) ||
		errors.Is(err, ErrDuplicateTransaction)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrUnknownConsequence)
}
