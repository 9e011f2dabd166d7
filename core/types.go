/*
Package core provides the leave-credit ledger and the approval workflow engine.

PURPOSE:
  Government HR offices track leave credits per employee per leave type and
  route leave requests and pass slips through a configurable chain of
  approvers. This package holds the domain types and the services that keep
  the two consistent: an approved leave request debits the ledger exactly once,
  a cancelled one is credited back, and every balance change leaves an
  append-only ledger entry behind.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: decimal quantities with two fractional digits (half days are 0.50)
  - LeaveType: a category of leave with its monthly accrual rate and cap
  - LeaveBalance: the materialized balance for one (employee, leave type) pair
  - LeaveCredit: one immutable ledger entry

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, rounded to two places
  2. Immutability: ledger entries are appended, never edited
  3. Reconcilable: the running sum of entries always equals the balance

SEE ALSO:
  - ledger.go: BalanceLedger, the only writer of balances
  - workflow.go: multi-level approval engine
  - request.go: leave request lifecycle
*/
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Two-place decimal quantities
// =============================================================================

// DayScale is the number of fractional digits kept for day quantities.
const DayScale int32 = 2

// HalfDay is the amount consumed by a half-day request.
var HalfDay = decimal.New(5, -1)

// RoundDays rounds a day quantity to DayScale places.
func RoundDays(d decimal.Decimal) decimal.Decimal {
	return d.Round(DayScale)
}

// ParseDays parses a decimal string such as "1.25" and rounds it.
func ParseDays(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundDays(d), nil
}

// FormatDays renders a day quantity with exactly two decimals.
func FormatDays(d decimal.Decimal) string {
	return d.StringFixed(DayScale)
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

// LeaveType is a category of leave (Vacation, Sick, Special Privilege...).
// Code is immutable once created.
type LeaveType struct {
	ID          string           `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	AccrualRate decimal.Decimal  `json:"accrual_rate"`
	MaxBalance  *decimal.Decimal `json:"max_balance,omitempty"`
	Monetizable bool             `json:"monetizable"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Accrues reports whether the type takes part in monthly accrual.
func (lt LeaveType) Accrues() bool {
	return lt.Active && lt.AccrualRate.IsPositive()
}

// =============================================================================
// BALANCE
// =============================================================================

// LeaveBalance is the current balance for one employee and leave type.
type LeaveBalance struct {
	EmployeeID     string          `json:"employee_id"`
	LeaveTypeID    string          `json:"leave_type_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// CreditType classifies a ledger entry.
type CreditType string

const (
	CreditOpeningBalance       CreditType = "opening_balance"
	CreditAccrual              CreditType = "accrual"
	CreditUsage                CreditType = "usage"
	CreditAdjustment           CreditType = "adjustment"
	CreditCancellationReversal CreditType = "cancellation_reversal"
	CreditMonetization         CreditType = "monetization"
)

// Valid reports whether t is a known entry type.
func (t CreditType) Valid() bool {
	switch t {
	case CreditOpeningBalance, CreditAccrual, CreditUsage, CreditAdjustment,
		CreditCancellationReversal, CreditMonetization:
		return true
	}
	return false
}

// LeaveCredit is one append-only ledger entry. Amount is signed: positive
// for credits, negative for debits. BalanceAfter is the balance once this
// entry is applied.
type LeaveCredit struct {
	ID           string          `json:"id"`
	Sequence     int64           `json:"sequence"`
	EmployeeID   string          `json:"employee_id"`
	LeaveTypeID  string          `json:"leave_type_id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         CreditType      `json:"transaction_type"`
	Reason       string          `json:"reason"`
	ReferenceID  string          `json:"reference_id,omitempty"`
	PeriodKey    string          `json:"period_key,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    string          `json:"created_by"`
}

// SystemActor is recorded as the actor for scheduler-driven changes.
const SystemActor = "system"
