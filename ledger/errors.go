/*
errors.go - Error kinds returned by ledger operations

PURPOSE:
  Every ledger operation either applies completely or returns one of these
  kinds and changes nothing. Callers branch with errors.Is on the sentinels
  and use errors.As on the structured types for details.

ERROR KINDS:
  ErrNotFound            referenced lot/entry/recipient/dispensing is missing
  ErrInsufficientStock   requested quantity exceeds the available balance
  ErrValidation          malformed or missing input
  ErrConcurrencyConflict a conditional write lost a race and retries ran out
  ErrForbidden           the actor may not write
  ErrHasDependents       delete refused because child rows still exist

SEE ALSO:
  - api/handlers.go: statusFor maps kinds to HTTP status codes
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
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrValidation          = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
	ErrForbidden           = errors.New("forbidden")
	ErrHasDependents       = errors.New("record has dependent rows")

	// ErrDuplicateRecipient is returned by stores when a write would give two
	// recipients the same (full name, birthdate, barangay).
	ErrDuplicateRecipient = errors.New("duplicate recipient")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Layer names the ledger tier a stock error refers to.
type Layer string

const (
	LayerInventory    Layer = "inventory"
	LayerDistribution Layer = "distribution"
)

type NotFoundError struct {
	Entity string // "inventory lot", "distribution entry", "recipient", "dispensing"
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type InsufficientStockError struct {
	Layer     Layer
	ID        int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Shortfall() int { return e.Requested - e.Available }

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient %s stock (id %d): available %d, requested %d, shortfall %d",
		e.Layer, e.ID, e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type DependentsError struct {
	Entity string
	ID     int64
	Count  int
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s %d still has %d dependent record(s)", e.Entity, e.ID, e.Count)
}

func (e *DependentsError) Unwrap() error { return ErrHasDependents }

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed when run again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrHasDependents) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrDuplicateRecipient)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
