package core_test

import (
	"errors"
	"testing"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestProvision_OpeningBalanceEntry(t *testing.T) {
	f := newFixture(t)

	bal, err := f.ledger.Provision(f.ctx, "emp-1", f.vl.ID, days("15"), "hr-1")
	require.NoError(t, err)
	assert.True(t, bal.CurrentBalance.Equal(days("15")))

	history, err := f.ledger.History(f.ctx, "emp-1", f.vl.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.CreditOpeningBalance, history[0].Type)
	assert.True(t, history[0].Amount.Equal(days("15")))
	assert.True(t, history[0].BalanceAfter.Equal(days("15")))
	assert.Equal(t, "hr-1", history[0].CreatedBy)
}

func TestProvision_Twice(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "5")

	_, err := f.ledger.Provision(f.ctx, "emp-1", f.vl.ID, days("5"), "hr-1")
	assert.ErrorIs(t, err, core.ErrStateConflict)
}

func TestProvision_AboveMax(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Provision(f.ctx, "emp-1", f.vl.ID, days("300.01"), "hr-1")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.ledger.GetBalance(f.ctx, "emp-1", f.vl.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "failed provisioning must not leave a balance row")
}

func TestGetBalance_NotProvisioned(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.GetBalance(f.ctx, "emp-1", f.sl.ID)

	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "leave_balance", nf.Resource)
}

func TestCredit_ClipsAtMaxBalance(t *testing.T) {
	// GIVEN: 299.50 days of a type capped at 300
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "299.50")

	// WHEN: a monthly accrual of 1.25 is credited
	entry, err := f.ledger.Credit(f.ctx, core.Posting{
		EmployeeID: "emp-1", LeaveTypeID: f.vl.ID, Amount: days("1.25"),
		Type: core.CreditAccrual, Reason: "Monthly Accrual - February 2026", Actor: core.SystemActor,
	})

	// THEN: only the headroom is recorded and the balance stops at the cap
	require.NoError(t, err)
	assert.True(t, entry.Amount.Equal(days("0.50")), "got %s", entry.Amount)
	assert.True(t, entry.BalanceAfter.Equal(days("300")))
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("300")))
}

func TestDebit_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "2")

	_, err := f.ledger.Debit(f.ctx, core.Posting{
		EmployeeID: "emp-1", LeaveTypeID: f.vl.ID, Amount: days("2.5"), Type: core.CreditUsage, Actor: "sup-1",
	})

	var ie *core.InsufficientBalanceError
	require.ErrorAs(t, err, &ie)
	assert.True(t, ie.Available.Equal(days("2")))
	assert.True(t, ie.Shortfall().Equal(days("0.5")))
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("2")), "balance must be unchanged")

	history, err := f.ledger.History(f.ctx, "emp-1", f.vl.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "rejected debit must not append an entry")
}

func TestDebit_RejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "2")

	_, err := f.ledger.Debit(f.ctx, core.Posting{
		EmployeeID: "emp-1", LeaveTypeID: f.vl.ID, Amount: days("0"), Type: core.CreditUsage,
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAdjust_SignedAmounts(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.sl, "10")

	_, err := f.ledger.Adjust(f.ctx, "emp-1", f.sl.ID, days("-3.5"), "Tardiness deduction", "hr-1")
	require.NoError(t, err)
	_, err = f.ledger.Adjust(f.ctx, "emp-1", f.sl.ID, days("1"), "Correction", "hr-1")
	require.NoError(t, err)

	assert.True(t, f.balance(t, "emp-1", f.sl).Equal(days("7.5")))

	_, err = f.ledger.Adjust(f.ctx, "emp-1", f.sl.ID, days("1"), "", "hr-1")
	assert.ErrorIs(t, err, core.ErrValidation, "adjustments need a reason")
}

func TestReconcile_ReplaysHistory(t *testing.T) {
	// GIVEN: a mix of postings
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "10")
	for _, p := range []core.Posting{
		{Amount: days("1.25"), Type: core.CreditAccrual, PeriodKey: "2026-01"},
		{Amount: days("3"), Type: core.CreditUsage},
		{Amount: days("1.25"), Type: core.CreditAccrual, PeriodKey: "2026-02"},
	} {
		p.EmployeeID, p.LeaveTypeID, p.Actor = "emp-1", f.vl.ID, core.SystemActor
		var err error
		if p.Type == core.CreditUsage {
			_, err = f.ledger.Debit(f.ctx, p)
		} else {
			_, err = f.ledger.Credit(f.ctx, p)
		}
		require.NoError(t, err)
	}

	// THEN: every balance_after equals the running sum and the stored balance
	require.NoError(t, f.ledger.Reconcile(f.ctx, "emp-1", f.vl.ID))
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("9.5")))

	history, err := f.ledger.History(f.ctx, "emp-1", f.vl.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].Sequence, history[i-1].Sequence)
	}
}

func TestCredit_DuplicatePeriodIsAlreadyAccrued(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "0")
	p := core.Posting{EmployeeID: "emp-1", LeaveTypeID: f.vl.ID, Amount: days("1.25"), Type: core.CreditAccrual, PeriodKey: "2026-02"}

	_, err := f.ledger.Credit(f.ctx, p)
	require.NoError(t, err)
	_, err = f.ledger.Credit(f.ctx, p)

	assert.ErrorIs(t, err, core.ErrAlreadyAccrued)
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("1.25")), "second credit must roll back")
}

func TestDebit_ConcurrentNeverOverdraws(t *testing.T) {
	// GIVEN: 5 days and ten concurrent one-day debits
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "5")

	var g errgroup.Group
	results := make([]error, 10)
	for i := range results {
		g.Go(func() error {
			_, results[i] = f.ledger.Debit(f.ctx, core.Posting{
				EmployeeID: "emp-1", LeaveTypeID: f.vl.ID, Amount: days("1"), Type: core.CreditUsage,
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// THEN: exactly five succeed, the rest fail on balance
	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, core.ErrInsufficientBalance), "unexpected error: %v", err)
	}
	assert.Equal(t, 5, succeeded)
	assert.True(t, f.balance(t, "emp-1", f.vl).IsZero())
	require.NoError(t, f.ledger.Reconcile(f.ctx, "emp-1", f.vl.ID))
}
