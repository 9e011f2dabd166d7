/*
ledger.go - BalanceLedger, the only writer of leave balances

PURPOSE:
  Each (employee, leave type) pair has a materialized balance and an
  append-only list of ledger entries. Every mutation locks the balance,
  computes the new value, updates the balance and appends one entry in the
  same transaction, so the running sum of entries always equals the balance.

RULES:
  - Amounts are positive and rounded to two places.
  - A debit larger than the balance fails with InsufficientBalanceError.
  - A credit that would exceed the type's max_balance is clipped; the entry
    records the amount actually applied.
  - A balance never leaves [0, max_balance].

TRANSACTIONS:
  Credit and Debit open their own transaction. CreditTx and DebitTx join a
  transaction the caller already holds, which is how the request lifecycle
  changes a request and the ledger atomically.

SEE ALSO:
  - request.go: debits on final approval, credits on cancellation
  - accrual.go: monthly credits
*/
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Posting describes one ledger mutation. Amount is always positive; the
// direction comes from the method called.
type Posting struct {
	EmployeeID  string
	LeaveTypeID string
	Amount      decimal.Decimal
	Type        CreditType
	Reason      string
	ReferenceID string
	// PeriodKey makes accrual postings idempotent per period.
	PeriodKey string
	Actor     string
}

type BalanceLedger struct {
	store  TxStore
	audit  AuditLogger
	logger *zap.Logger
	now    Clock
}

func NewBalanceLedger(store TxStore, audit AuditLogger, logger ...*zap.Logger) *BalanceLedger {
	return &BalanceLedger{
		store:  store,
		audit:  audit,
		logger: namedLogger("leave.ledger", logger),
		now:    time.Now,
	}
}

func (l *BalanceLedger) SetClock(now Clock) { l.now = now }

// =============================================================================
// READS
// =============================================================================

func (l *BalanceLedger) GetBalance(ctx context.Context, employeeID, leaveTypeID string) (decimal.Decimal, error) {
	b, err := l.store.GetBalance(ctx, employeeID, leaveTypeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	if b == nil {
		return decimal.Zero, balanceNotFound(employeeID, leaveTypeID)
	}
	return b.CurrentBalance, nil
}

func (l *BalanceLedger) Balances(ctx context.Context, employeeID string) ([]LeaveBalance, error) {
	bs, err := l.store.ListBalances(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return bs, nil
}

// History returns the ledger entries for a pair, oldest first.
func (l *BalanceLedger) History(ctx context.Context, employeeID, leaveTypeID string) ([]LeaveCredit, error) {
	b, err := l.store.GetBalance(ctx, employeeID, leaveTypeID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if b == nil {
		return nil, balanceNotFound(employeeID, leaveTypeID)
	}
	credits, err := l.store.ListCredits(ctx, employeeID, leaveTypeID)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return credits, nil
}

// Reconcile replays the ledger for a pair and checks every balance_after
// and the materialized balance against the running sum.
func (l *BalanceLedger) Reconcile(ctx context.Context, employeeID, leaveTypeID string) error {
	credits, err := l.History(ctx, employeeID, leaveTypeID)
	if err != nil {
		return err
	}
	running := decimal.Zero
	for _, c := range credits {
		running = running.Add(c.Amount)
		if !running.Equal(c.BalanceAfter) {
			return &ReconciliationError{
				EmployeeID: employeeID, LeaveTypeID: leaveTypeID, EntryID: c.ID,
				Expected: running, Actual: c.BalanceAfter,
			}
		}
	}
	current, err := l.GetBalance(ctx, employeeID, leaveTypeID)
	if err != nil {
		return err
	}
	if !running.Equal(current) {
		return &ReconciliationError{
			EmployeeID: employeeID, LeaveTypeID: leaveTypeID,
			Expected: running, Actual: current,
		}
	}
	return nil
}

// =============================================================================
// WRITES
// =============================================================================

// Provision creates the balance row for a pair with an opening balance
// entry. Provisioning twice is a state conflict.
func (l *BalanceLedger) Provision(ctx context.Context, employeeID, leaveTypeID string, opening decimal.Decimal, actor string) (LeaveBalance, error) {
	opening = RoundDays(opening)
	if employeeID == "" {
		return LeaveBalance{}, newValidationError("employee_id", "is required")
	}
	if opening.IsNegative() {
		return LeaveBalance{}, newValidationError("opening_balance", "must not be negative")
	}

	var out LeaveBalance
	var entry LeaveCredit
	err := l.store.WithTx(ctx, func(s Store) error {
		lt, err := s.GetLeaveType(ctx, leaveTypeID)
		if err != nil {
			return fmt.Errorf("get leave type: %w", err)
		}
		if lt == nil {
			return &NotFoundError{Resource: "leave_type", ID: leaveTypeID}
		}
		if lt.MaxBalance != nil && opening.GreaterThan(*lt.MaxBalance) {
			return newValidationError("opening_balance", "exceeds max balance %s", FormatDays(*lt.MaxBalance))
		}

		now := l.now().UTC()
		if err := s.InsertBalance(ctx, LeaveBalance{EmployeeID: employeeID, LeaveTypeID: leaveTypeID, CurrentBalance: decimal.Zero, UpdatedAt: now}); err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				return &StateConflictError{Resource: "leave_balance", ID: employeeID + "/" + leaveTypeID, Status: "provisioned", Action: "provision"}
			}
			return fmt.Errorf("insert balance: %w", err)
		}
		entry = LeaveCredit{
			ID:           uuid.NewString(),
			EmployeeID:   employeeID,
			LeaveTypeID:  leaveTypeID,
			Amount:       opening,
			Type:         CreditOpeningBalance,
			Reason:       "Opening balance",
			BalanceAfter: opening,
			CreatedAt:    now,
			CreatedBy:    actor,
		}
		out = LeaveBalance{EmployeeID: employeeID, LeaveTypeID: leaveTypeID, CurrentBalance: opening, UpdatedAt: now}
		if err := s.UpdateBalance(ctx, out); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if err := s.AppendCredit(ctx, entry); err != nil {
			return fmt.Errorf("append credit: %w", err)
		}
		return nil
	})
	if err != nil {
		return LeaveBalance{}, err
	}

	recordAudit(ctx, l.audit, l.logger, ledgerAudit(AuditBalanceProvisioned, entry))
	return out, nil
}

// Credit adds days to a balance in its own transaction.
func (l *BalanceLedger) Credit(ctx context.Context, p Posting) (LeaveCredit, error) {
	return l.inTx(ctx, p, AuditLedgerCredit, l.CreditTx)
}

// Debit removes days from a balance in its own transaction.
func (l *BalanceLedger) Debit(ctx context.Context, p Posting) (LeaveCredit, error) {
	return l.inTx(ctx, p, AuditLedgerDebit, l.DebitTx)
}

// Adjust applies a signed manual correction. Positive amounts credit,
// negative amounts debit; zero is rejected.
func (l *BalanceLedger) Adjust(ctx context.Context, employeeID, leaveTypeID string, amount decimal.Decimal, reason, actor string) (LeaveCredit, error) {
	if reason == "" {
		return LeaveCredit{}, newValidationError("reason", "is required for adjustments")
	}
	p := Posting{
		EmployeeID:  employeeID,
		LeaveTypeID: leaveTypeID,
		Amount:      amount.Abs(),
		Type:        CreditAdjustment,
		Reason:      reason,
		Actor:       actor,
	}
	if amount.IsNegative() {
		return l.inTx(ctx, p, AuditLedgerAdjustment, l.DebitTx)
	}
	return l.inTx(ctx, p, AuditLedgerAdjustment, l.CreditTx)
}

// CreditTx credits within the caller's transaction.
func (l *BalanceLedger) CreditTx(ctx context.Context, s Store, p Posting) (LeaveCredit, error) {
	return l.post(ctx, s, p, true)
}

// DebitTx debits within the caller's transaction.
func (l *BalanceLedger) DebitTx(ctx context.Context, s Store, p Posting) (LeaveCredit, error) {
	return l.post(ctx, s, p, false)
}

func (l *BalanceLedger) inTx(ctx context.Context, p Posting, action AuditAction, fn func(context.Context, Store, Posting) (LeaveCredit, error)) (LeaveCredit, error) {
	var entry LeaveCredit
	err := l.store.WithTx(ctx, func(s Store) error {
		var err error
		entry, err = fn(ctx, s, p)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyAccrued) {
			l.logger.Warn("ledger posting failed",
				zap.String("employee_id", p.EmployeeID),
				zap.String("leave_type_id", p.LeaveTypeID),
				zap.String("type", string(p.Type)),
				zap.Error(err),
			)
		}
		return LeaveCredit{}, err
	}
	l.logger.Debug("ledger posting applied",
		zap.String("employee_id", entry.EmployeeID),
		zap.String("leave_type_id", entry.LeaveTypeID),
		zap.String("amount", FormatDays(entry.Amount)),
		zap.String("balance_after", FormatDays(entry.BalanceAfter)),
	)
	recordAudit(ctx, l.audit, l.logger, ledgerAudit(action, entry))
	return entry, nil
}

func (l *BalanceLedger) post(ctx context.Context, s Store, p Posting, credit bool) (LeaveCredit, error) {
	amount := RoundDays(p.Amount)
	if !amount.IsPositive() {
		return LeaveCredit{}, newValidationError("amount", "must be greater than zero")
	}
	if !p.Type.Valid() {
		return LeaveCredit{}, newValidationError("transaction_type", "unknown type %q", p.Type)
	}

	lt, err := s.GetLeaveType(ctx, p.LeaveTypeID)
	if err != nil {
		return LeaveCredit{}, fmt.Errorf("get leave type: %w", err)
	}
	if lt == nil {
		return LeaveCredit{}, &NotFoundError{Resource: "leave_type", ID: p.LeaveTypeID}
	}
	bal, err := s.LockBalance(ctx, p.EmployeeID, p.LeaveTypeID)
	if err != nil {
		return LeaveCredit{}, fmt.Errorf("lock balance: %w", err)
	}
	if bal == nil {
		return LeaveCredit{}, balanceNotFound(p.EmployeeID, p.LeaveTypeID)
	}

	current := bal.CurrentBalance
	var next decimal.Decimal
	if credit {
		next = current.Add(amount)
		if lt.MaxBalance != nil && next.GreaterThan(*lt.MaxBalance) {
			next = decimal.Max(*lt.MaxBalance, current)
		}
	} else {
		if amount.GreaterThan(current) {
			return LeaveCredit{}, &InsufficientBalanceError{
				EmployeeID: p.EmployeeID, LeaveTypeID: p.LeaveTypeID,
				Available: current, Requested: amount,
			}
		}
		next = current.Sub(amount)
	}
	if next.IsNegative() {
		return LeaveCredit{}, newValidationError("amount", "balance would become negative")
	}
	if lt.MaxBalance != nil && next.GreaterThan(*lt.MaxBalance) && next.GreaterThan(current) {
		return LeaveCredit{}, newValidationError("amount", "balance would exceed max %s", FormatDays(*lt.MaxBalance))
	}

	now := l.now().UTC()
	entry := LeaveCredit{
		ID:           uuid.NewString(),
		EmployeeID:   p.EmployeeID,
		LeaveTypeID:  p.LeaveTypeID,
		Amount:       next.Sub(current),
		Type:         p.Type,
		Reason:       p.Reason,
		ReferenceID:  p.ReferenceID,
		PeriodKey:    p.PeriodKey,
		BalanceAfter: next,
		CreatedAt:    now,
		CreatedBy:    p.Actor,
	}
	bal.CurrentBalance = next
	bal.UpdatedAt = now
	if err := s.UpdateBalance(ctx, *bal); err != nil {
		return LeaveCredit{}, fmt.Errorf("update balance: %w", err)
	}
	if err := s.AppendCredit(ctx, entry); err != nil {
		if p.PeriodKey != "" && errors.Is(err, ErrDuplicateKey) {
			return LeaveCredit{}, fmt.Errorf("%w: %s", ErrAlreadyAccrued, p.PeriodKey)
		}
		return LeaveCredit{}, fmt.Errorf("append credit: %w", err)
	}
	return entry, nil
}

func ledgerAudit(action AuditAction, c LeaveCredit) AuditEvent {
	return AuditEvent{
		Action:     action,
		ActorID:    c.CreatedBy,
		EntityKind: "leave_balance",
		EntityID:   c.EmployeeID + "/" + c.LeaveTypeID,
		EmployeeID: c.EmployeeID,
		Details: map[string]any{
			"entry_id":      c.ID,
			"type":          string(c.Type),
			"amount":        FormatDays(c.Amount),
			"balance_after": FormatDays(c.BalanceAfter),
			"reason":        c.Reason,
			"reference_id":  c.ReferenceID,
		},
		At: c.CreatedAt,
	}
}

func balanceNotFound(employeeID, leaveTypeID string) error {
	return &NotFoundError{Resource: "leave_balance", ID: employeeID + "/" + leaveTypeID}
}
