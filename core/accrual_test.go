package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccrualPeriod(t *testing.T) {
	feb := core.AccrualPeriod{Year: 2026, Month: time.February}
	assert.Equal(t, "February 2026", feb.Label())
	assert.Equal(t, "2026-02", feb.Key())
	assert.Equal(t, core.AccrualPeriod{Year: 2025, Month: time.December}, core.AccrualPeriod{Year: 2026, Month: time.January}.Previous())
	assert.Equal(t, feb, core.PeriodOf(date("2026-02-28")))

	assert.NoError(t, feb.Validate())
	assert.ErrorIs(t, core.AccrualPeriod{Year: 2026, Month: 13}.Validate(), core.ErrValidation)
	assert.ErrorIs(t, core.AccrualPeriod{Year: 0, Month: 1}.Validate(), core.ErrValidation)
}

func TestEligiblePairs(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Create(f.ctx, core.LeaveTypeInput{Code: "SPL", Name: "Special Privilege Leave"})
	require.NoError(t, err)

	pairs, err := f.accrual.EligiblePairs(f.ctx)
	require.NoError(t, err)

	// seven regular employees, two accruing types; SPL has no rate
	assert.Len(t, pairs, 14)
	for _, p := range pairs {
		assert.NotEqual(t, "jo-1", p.EmployeeID, "job order employees do not accrue")
		assert.NotEqual(t, "SPL", p.LeaveType.Code)
	}

	_, err = f.registry.Deactivate(f.ctx, f.sl.ID)
	require.NoError(t, err)
	pairs, err = f.accrual.EligiblePairs(f.ctx)
	require.NoError(t, err)
	assert.Len(t, pairs, 7)
}

func TestAccrualRun_OncePerPeriod(t *testing.T) {
	// GIVEN: two provisioned pairs
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "10")
	f.provision(t, "emp-2", f.vl, "10")
	pairs := []core.AccrualPair{{EmployeeID: "emp-1", LeaveType: f.vl}, {EmployeeID: "emp-2", LeaveType: f.vl}}
	feb := core.AccrualPeriod{Year: 2026, Month: time.February}

	// WHEN: February runs twice
	first := f.accrual.Run(f.ctx, feb, pairs)
	second := f.accrual.Run(f.ctx, feb, pairs)

	// THEN: the rerun skips every pair and balances move once
	assert.Equal(t, 2, first.Processed)
	assert.Zero(t, first.Errors)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 2, second.Skipped)
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("11.25")))

	history, err := f.ledger.History(f.ctx, "emp-1", f.vl.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.CreditAccrual, history[1].Type)
	assert.Equal(t, "Monthly Accrual - February 2026", history[1].Reason)
	assert.Equal(t, "2026-02", history[1].PeriodKey)
	assert.Equal(t, core.SystemActor, history[1].CreatedBy)

	january := f.accrual.Run(f.ctx, feb.Previous(), pairs)
	assert.Equal(t, 2, january.Processed, "a different period accrues again")
}

func TestAccrualRun_UnprovisionedPairIsAnError(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "0")

	res := f.accrual.Run(f.ctx, core.AccrualPeriod{Year: 2026, Month: time.February}, []core.AccrualPair{
		{EmployeeID: "emp-1", LeaveType: f.vl},
		{EmployeeID: "emp-2", LeaveType: f.vl},
	})

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "emp-2", res.Failures[0].EmployeeID)
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("1.25")))
}

func TestAccrualRun_AtCapRecordsZeroEntry(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "300")

	res := f.accrual.Run(f.ctx, core.AccrualPeriod{Year: 2026, Month: time.February}, []core.AccrualPair{{EmployeeID: "emp-1", LeaveType: f.vl}})

	assert.Equal(t, 1, res.Processed)
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("300")))
	history, err := f.ledger.History(f.ctx, "emp-1", f.vl.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[1].Amount.IsZero())

	again := f.accrual.Run(f.ctx, core.AccrualPeriod{Year: 2026, Month: time.February}, []core.AccrualPair{{EmployeeID: "emp-1", LeaveType: f.vl}})
	assert.Equal(t, 1, again.Skipped, "the zero entry still marks the period as done")
}

func TestAccrualRun_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "0")
	f.provision(t, "emp-1", f.sl, "0")

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	res := f.accrual.Run(ctx, core.AccrualPeriod{Year: 2026, Month: time.February}, []core.AccrualPair{
		{EmployeeID: "emp-1", LeaveType: f.vl},
		{EmployeeID: "emp-1", LeaveType: f.sl},
	})

	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 2, res.Errors)
	assert.True(t, f.balance(t, "emp-1", f.vl).IsZero())
}

func TestRunMonthly_RejectsBadPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.accrual.RunMonthly(f.ctx, core.AccrualPeriod{Year: 2026, Month: 0})
	assert.ErrorIs(t, err, core.ErrValidation)
}
