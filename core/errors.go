/*
errors.go - Error types for the ledger and workflow engine

PURPOSE:
  Every failure a caller may want to branch on has a sentinel for errors.Is
  and, where the caller needs details, a structured type that unwraps to it.
  The HTTP layer maps sentinels to status codes; nothing else inspects
  error strings.

ERROR CATEGORIES:
  1. Validation - bad input, nothing was written
  2. InsufficientBalance - a debit larger than the balance
  3. NotFound - referenced entity is missing
  4. StateConflict - operation not allowed from the current state
  5. Concurrency - lock wait exceeded, safe to retry
  6. NotAuthorized - approver does not match the level's role or scope

SEE ALSO:
  - api/errors.go: status code mapping
  - store/sqlite/errors.go: driver error mapping
*/
package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
	ErrStateConflict       = errors.New("state conflict")

	// ErrConcurrency is returned when a lock could not be acquired in time.
	// The operation had no effect and may be retried.
	ErrConcurrency = errors.New("concurrent modification: lock wait timeout")

	ErrNotAuthorized = errors.New("not authorized")

	// ErrDuplicateKey is returned by stores when a uniqueness constraint fails.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrAlreadyAccrued is returned when an accrual for the same period was
	// already posted for the pair.
	ErrAlreadyAccrued = errors.New("accrual already posted for period")

	ErrReconciliation = errors.New("ledger does not reconcile")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID  string
	LeaveTypeID string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s, shortfall %s",
		FormatDays(e.Available), FormatDays(e.Requested), FormatDays(e.Shortfall()))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is how many days the request exceeds the balance by.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StateConflictError is returned when an action is not allowed from the
// entity's current status.
type StateConflictError struct {
	Resource string
	ID       string
	Status   string
	Action   string
}

func (e *StateConflictError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("cannot %s %s %s: state changed concurrently", e.Action, e.Resource, e.ID)
	}
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Resource, e.ID, e.Status)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// CancellationWindowError is returned when a cancellation comes too close to
// (or after) the leave start date.
type CancellationWindowError struct {
	DateFrom   time.Time
	DaysBefore int
	CutoffDays int
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("cancellation window passed: leave starts %s (%d days away), cancellations close %d day(s) before",
		e.DateFrom.Format(DateLayout), e.DaysBefore, e.CutoffDays)
}

func (e *CancellationWindowError) Unwrap() error { return ErrStateConflict }

// NotAuthorizedError explains why an approver was rejected.
type NotAuthorizedError struct {
	ApproverID string
	Reason     string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("approver %s not authorized: %s", e.ApproverID, e.Reason)
}

func (e *NotAuthorizedError) Unwrap() error { return ErrNotAuthorized }

// ReconciliationError reports the first ledger entry whose running sum
// disagrees with its recorded balance_after.
type ReconciliationError struct {
	EmployeeID  string
	LeaveTypeID string
	EntryID     string
	Expected    decimal.Decimal
	Actual      decimal.Decimal
}

func (e *ReconciliationError) Error() string {
	where := "materialized balance"
	if e.EntryID != "" {
		where = "entry " + e.EntryID
	}
	return fmt.Sprintf("ledger for %s/%s does not reconcile at %s: expected %s, recorded %s",
		e.EmployeeID, e.LeaveTypeID, where, FormatDays(e.Expected), FormatDays(e.Actual))
}

func (e *ReconciliationError) Unwrap() error { return ErrReconciliation }

// IsRetryable reports whether err came from lock contention.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}
