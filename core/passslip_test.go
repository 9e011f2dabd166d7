package core_test

import (
	"testing"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slipInput(slipType core.PassSlipType, date string) core.PassSlipInput {
	return core.PassSlipInput{
		SlipType:       string(slipType),
		SlipDate:       date,
		TimeOut:        "13:00",
		ExpectedReturn: "15:30",
		Destination:    "Civil Service Commission Regional Office",
		Purpose:        "Submit plantilla documents",
	}
}

func TestPassSlip_ApproveNeverTouchesLedger(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "15")

	slip, err := f.manager.CreatePassSlip(f.ctx, "emp-1", slipInput(core.PassSlipOfficial, "2026-03-02"))
	require.NoError(t, err)
	assert.Equal(t, "PS-2026-000001", slip.ReferenceNo)
	assert.Equal(t, core.StatusPending, slip.Status)

	slip, err = f.manager.ApprovePassSlip(f.ctx, slip.ID, "sup-1", "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusApproved, slip.Status)
	assert.Equal(t, "sup-1", slip.ApprovedBy)

	history, err := f.ledger.History(f.ctx, "emp-1", f.vl.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// leave requests keep their own reference sequence
	req := f.file(t, "emp-1", f.vl, "2026-03-09", "2026-03-09")
	assert.Equal(t, "LR-2026-000001", req.ReferenceNo)
}

func TestPassSlip_TypeSpecificWorkflow(t *testing.T) {
	f := newFixture(t)
	_, err := f.workflow.SaveWorkflow(f.ctx, core.WorkflowConfig{
		DepartmentID: "it", Kind: core.KindPassSlip, PassSlipType: core.PassSlipPersonal,
		Levels: []core.ApprovalLevel{supervisorLevel, headLevel},
	}, "hr-1")
	require.NoError(t, err)

	official, err := f.manager.CreatePassSlip(f.ctx, "emp-1", slipInput(core.PassSlipOfficial, "2026-03-03"))
	require.NoError(t, err)
	assert.Len(t, official.WorkflowLevels, 1)

	personal, err := f.manager.CreatePassSlip(f.ctx, "emp-1", slipInput(core.PassSlipPersonal, "2026-03-03"))
	require.NoError(t, err)
	require.Len(t, personal.WorkflowLevels, 2)

	personal, err = f.manager.ApprovePassSlip(f.ctx, personal.ID, "sup-1", "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, personal.Status)
	assert.Equal(t, 2, personal.Level)

	personal, err = f.manager.DenyPassSlip(f.ctx, personal.ID, "head-1", "Personal errands after 3 PM only")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDenied, personal.Status)
	assert.Equal(t, "Personal errands after 3 PM only", personal.DenialReason)
}

func TestPassSlip_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		edit  func(*core.PassSlipInput)
		field string
	}{
		{"past date", func(in *core.PassSlipInput) { in.SlipDate = "2026-03-01" }, "slip_date"},
		{"return before leaving", func(in *core.PassSlipInput) { in.ExpectedReturn = "12:00" }, "expected_return"},
		{"bad clock time", func(in *core.PassSlipInput) { in.TimeOut = "1pm" }, "time_out"},
		{"unknown type", func(in *core.PassSlipInput) { in.SlipType = "vacation" }, "slip_type"},
		{"missing purpose", func(in *core.PassSlipInput) { in.Purpose = "" }, "purpose"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := slipInput(core.PassSlipOfficial, "2026-03-02")
			tt.edit(&in)
			_, err := f.manager.CreatePassSlip(f.ctx, "emp-1", in)

			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	slip, err := f.manager.CreatePassSlip(f.ctx, "emp-1", slipInput(core.PassSlipOfficial, "2026-03-02"))
	require.NoError(t, err)
	_, err = f.manager.DenyPassSlip(f.ctx, slip.ID, "sup-1", "nope")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.manager.ApprovePassSlip(f.ctx, slip.ID, "emp-1", "")
	assert.ErrorIs(t, err, core.ErrNotAuthorized)
}

func TestPassSlip_Cancel(t *testing.T) {
	f := newFixture(t)
	slip, err := f.manager.CreatePassSlip(f.ctx, "emp-1", slipInput(core.PassSlipPersonal, "2026-03-02"))
	require.NoError(t, err)

	_, err = f.manager.CancelPassSlip(f.ctx, slip.ID, "emp-2", "")
	assert.ErrorIs(t, err, core.ErrNotAuthorized, "only the owner or HR may cancel")

	// same day is still allowed
	slip, err = f.manager.CancelPassSlip(f.ctx, slip.ID, "emp-1", "meeting moved")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, slip.Status)
	assert.Equal(t, "meeting moved", slip.CancellationReason)

	_, err = f.manager.CancelPassSlip(f.ctx, slip.ID, "emp-1", "")
	assert.ErrorIs(t, err, core.ErrStateConflict)

	pending, err := f.manager.PendingApprovals(f.ctx, core.KindPassSlip, "")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// once the slip date has passed it stays as filed
	old, err := f.manager.CreatePassSlip(f.ctx, "emp-1", slipInput(core.PassSlipPersonal, "2026-03-02"))
	require.NoError(t, err)
	later := core.NewRequestManager(core.ManagerDeps{
		Store: f.store, Ledger: f.ledger, Registry: f.registry, Workflow: f.workflow, Directory: f.store,
	}, core.ManagerConfig{Now: clockAt(fixedNow.AddDate(0, 0, 2))})
	_, err = later.CancelPassSlip(f.ctx, old.ID, "emp-1", "")
	var we *core.CancellationWindowError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, -2, we.DaysBefore)
}
