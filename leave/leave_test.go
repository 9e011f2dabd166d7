package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/Kirachon/Monitoring-Tool-sub000/leave"
	"github.com/Kirachon/Monitoring-Tool-sub000/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedLeaveTypes_Idempotent(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	registry := core.NewLeaveTypeRegistry(store)

	created, err := leave.SeedLeaveTypes(ctx, registry)
	require.NoError(t, err)
	assert.Len(t, created, len(leave.StandardLeaveTypes()))

	again, err := leave.SeedLeaveTypes(ctx, registry)
	require.NoError(t, err)
	assert.Empty(t, again)

	accruing, err := registry.Accruing(ctx)
	require.NoError(t, err)
	var codes []string
	for _, lt := range accruing {
		codes = append(codes, lt.Code)
	}
	assert.Equal(t, []string{"SL", "VL"}, codes)

	ml, err := registry.GetByCode(ctx, "ML")
	require.NoError(t, err)
	require.NotNil(t, ml.MaxBalance)
	assert.Equal(t, "105.00", core.FormatDays(*ml.MaxBalance))
}

func TestStandardWorkflows(t *testing.T) {
	for _, levels := range [][]core.ApprovalLevel{
		leave.SupervisorOnlyWorkflow(), leave.TwoLevelWorkflow(), leave.DirectorWorkflow(),
	} {
		assert.NoError(t, core.ValidateLevels(levels))
	}
	assert.Len(t, leave.DirectorWorkflow(), 3)
	assert.Len(t, leave.TwoLevelWorkflow(), 2, "DirectorWorkflow must not alias TwoLevelWorkflow")

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.SaveDepartment(ctx, core.Department{ID: "hrmo", Name: "Human Resource Management Office"}))

	engine := core.NewWorkflowEngine(store, store, store)
	require.NoError(t, leave.ApplyStandardWorkflows(ctx, engine, "hrmo", "hr-1"))

	levels, err := engine.ResolveConfig(ctx, "hrmo", core.KindLeaveRequest, "")
	require.NoError(t, err)
	assert.Equal(t, leave.TwoLevelWorkflow(), levels)

	levels, err = engine.ResolveConfig(ctx, "hrmo", core.KindPassSlip, core.PassSlipOfficial)
	require.NoError(t, err)
	assert.Len(t, levels, 1)
}

func TestPhilippineHolidays(t *testing.T) {
	hs := leave.PhilippineHolidays(2026)
	require.Len(t, hs, 12)

	byName := map[string]core.Holiday{}
	for _, h := range hs {
		byName[h.Name] = h
	}
	assert.True(t, byName["Rizal Day"].Recurring)
	assert.Equal(t, "2026-12-30", byName["Rizal Day"].Date.Format(core.DateLayout))

	heroes := byName["National Heroes Day"]
	assert.False(t, heroes.Recurring)
	assert.Equal(t, "2026-08-31", heroes.Date.Format(core.DateLayout))
}

func TestLastWeekday(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2025, "2025-08-25"},
		{2026, "2026-08-31"},
		{2027, "2027-08-30"},
	}
	for _, tt := range tests {
		got := leave.LastWeekday(tt.year, time.August, time.Monday)
		assert.Equal(t, tt.want, got.Format(core.DateLayout))
		assert.Equal(t, time.Monday, got.Weekday())
	}
}
