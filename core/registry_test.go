package core_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreate(t *testing.T) {
	f := newFixture(t)

	lt, err := f.registry.Create(f.ctx, core.LeaveTypeInput{
		Code: " ml ", Name: "Maternity Leave", AccrualRate: days("0"), MaxBalance: ptr(days("105.004")),
	})
	require.NoError(t, err)
	assert.Equal(t, "ML", lt.Code)
	assert.True(t, lt.Active)
	assert.False(t, lt.Accrues())
	require.NotNil(t, lt.MaxBalance)
	assert.Equal(t, "105.00", core.FormatDays(*lt.MaxBalance))

	got, err := f.registry.GetByCode(f.ctx, "ml")
	require.NoError(t, err)
	assert.Equal(t, lt.ID, got.ID)

	tests := []struct {
		name  string
		in    core.LeaveTypeInput
		field string
	}{
		{"duplicate code", core.LeaveTypeInput{Code: "vl", Name: "Another Vacation"}, "code"},
		{"missing name", core.LeaveTypeInput{Code: "XL"}, "name"},
		{"non alphanumeric code", core.LeaveTypeInput{Code: "X-L", Name: "Dash"}, "code"},
		{"negative rate", core.LeaveTypeInput{Code: "NR", Name: "Negative", AccrualRate: days("-1")}, "accrual_rate"},
		{"negative cap", core.LeaveTypeInput{Code: "NC", Name: "Negative cap", MaxBalance: ptr(days("-1"))}, "max_balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.Create(f.ctx, tt.in)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRegistryUpdateAndDeactivate(t *testing.T) {
	f := newFixture(t)

	lt, err := f.registry.Update(f.ctx, f.vl.ID, core.LeaveTypeUpdate{
		Name: ptr("Vacation Leave (VL)"), AccrualRate: ptr(days("1.5")), ClearMaxBalance: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Vacation Leave (VL)", lt.Name)
	assert.True(t, lt.AccrualRate.Equal(days("1.5")))
	assert.Nil(t, lt.MaxBalance)
	assert.Equal(t, "VL", lt.Code)

	lt, err = f.registry.Deactivate(f.ctx, f.vl.ID)
	require.NoError(t, err)
	assert.False(t, lt.Active)

	active, err := f.registry.List(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "SL", active[0].Code)

	all, err := f.registry.List(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// inactive types refuse new requests
	f.provision(t, "emp-1", f.vl, "5")
	_, _, err = f.manager.CreateLeaveRequest(f.ctx, "emp-1", core.LeaveRequestInput{
		LeaveTypeID: f.vl.ID, DateFrom: "2026-03-09", DateTo: "2026-03-09",
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.registry.Update(f.ctx, "missing", core.LeaveTypeUpdate{Name: ptr("x")})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistryUpdate_CapBelowExistingBalance(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "15")
	f.provision(t, "emp-2", f.vl, "8")

	// GIVEN: emp-1 holds 15 days of VL
	// WHEN: the cap is lowered to 10
	_, err := f.registry.Update(f.ctx, f.vl.ID, core.LeaveTypeUpdate{MaxBalance: ptr(days("10"))})

	// THEN: the update is refused and nothing changes
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "max_balance", ve.Field)

	lt, err := f.registry.Get(f.ctx, f.vl.ID)
	require.NoError(t, err)
	require.NotNil(t, lt.MaxBalance)
	assert.Equal(t, "300.00", core.FormatDays(*lt.MaxBalance))

	// a cap equal to the highest balance is fine
	lt, err = f.registry.Update(f.ctx, f.vl.ID, core.LeaveTypeUpdate{MaxBalance: ptr(days("15"))})
	require.NoError(t, err)
	assert.Equal(t, "15.00", core.FormatDays(*lt.MaxBalance))

	_, err = f.ledger.Credit(f.ctx, core.Posting{
		EmployeeID: "emp-1", LeaveTypeID: f.vl.ID, Amount: days("1.25"), Type: core.CreditAdjustment, Reason: "bonus", Actor: "hr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "15.00", core.FormatDays(f.balance(t, "emp-1", f.vl)))
	require.NoError(t, f.ledger.Reconcile(f.ctx, "emp-1", f.vl.ID))
}

// countingStore counts leave type reads that reach the store.
type countingStore struct {
	core.LeaveTypeStore
	reads atomic.Int32
}

func (c *countingStore) GetLeaveType(ctx context.Context, id string) (*core.LeaveType, error) {
	c.reads.Add(1)
	return c.LeaveTypeStore.GetLeaveType(ctx, id)
}

func TestRegistryGet_CachesReads(t *testing.T) {
	f := newFixture(t)
	cs := &countingStore{LeaveTypeStore: f.store}
	reg := core.NewLeaveTypeRegistry(cs)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lt, err := reg.Get(f.ctx, f.vl.ID)
			assert.NoError(t, err)
			assert.Equal(t, "VL", lt.Code)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cs.reads.Load(), int32(20))
	before := cs.reads.Load()
	_, err := reg.Get(f.ctx, f.vl.ID)
	require.NoError(t, err)
	assert.Equal(t, before, cs.reads.Load(), "cached after the first load")

	_, err = reg.Get(f.ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
