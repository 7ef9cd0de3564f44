/*
errors.go - Centralized error types for the rental ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Core packages wrap these with context; the API maps them to statuses.

ERROR CATEGORIES:
  1. Validation errors - Bad input (non-positive totals, unknown bill types)
  2. Not-found errors  - A referenced row does not exist
  3. Conflict errors   - Business rule violations (second active tenant)
  4. Store errors      - Anything else from persistence; operation-scoped

USAGE:
  if errors.Is(err, ledger.ErrNotFound) {
      // 404
  }

SEE ALSO:
  - validate.go: Produces *ValidationError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced row doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrHouseOccupied is returned when a second active tenant would be
	// placed in a house that already has one.
	ErrHouseOccupied = errors.New("house already has an active tenant")

	// ErrUnknownBillType is returned for a bill type other than electricity/water.
	ErrUnknownBillType = errors.New("unknown bill type")

	// ErrNonPositiveAmount is returned when a bill total is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
	Cause   error // optional, more specific sentinel
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

// NotFoundError identifies the missing row.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NotFound(kind string, id int64) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// OccupiedError reports the house and the tenant already living there.
type OccupiedError struct {
	HouseID  HouseID
	TenantID TenantID
}

func (e *OccupiedError) Error() string {
	return fmt.Sprintf("house %d already has active tenant %d", e.HouseID, e.TenantID)
}

func (e *OccupiedError) Unwrap() error {
	return ErrHouseOccupied
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a business-rule conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrHouseOccupied)
}
