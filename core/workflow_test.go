package core_test

import (
	"testing"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	supervisorLevel = core.ApprovalLevel{Level: 1, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame, Required: true}
	headLevel       = core.ApprovalLevel{Level: 2, ApproverRole: core.RoleDepartmentHead, DepartmentScope: core.ScopeSame, Required: true}
	directorLevel   = core.ApprovalLevel{Level: 3, ApproverRole: core.RoleDirector, DepartmentScope: core.ScopeParent, Required: true}
)

func TestValidateLevels(t *testing.T) {
	tests := []struct {
		name   string
		levels []core.ApprovalLevel
		ok     bool
	}{
		{"single default", core.DefaultWorkflow(), true},
		{"three levels", []core.ApprovalLevel{supervisorLevel, headLevel, directorLevel}, true},
		{"empty", nil, false},
		{"too many", []core.ApprovalLevel{
			{Level: 1, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame},
			{Level: 2, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame},
			{Level: 3, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame},
			{Level: 4, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame},
			{Level: 5, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame},
			{Level: 6, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame},
		}, false},
		{"not increasing", []core.ApprovalLevel{headLevel, supervisorLevel}, false},
		{"zero level", []core.ApprovalLevel{{Level: 0, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame}}, false},
		{"unknown role", []core.ApprovalLevel{{Level: 1, ApproverRole: "janitor", DepartmentScope: core.ScopeSame}}, false},
		{"unknown scope", []core.ApprovalLevel{{Level: 1, ApproverRole: core.RoleSupervisor, DepartmentScope: "galaxy"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.ValidateLevels(tt.levels)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrValidation)
			}
		})
	}
}

func TestSaveWorkflow_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.SaveWorkflow(f.ctx, core.WorkflowConfig{DepartmentID: "nowhere", Kind: core.KindLeaveRequest, Levels: core.DefaultWorkflow()}, "hr-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.workflow.SaveWorkflow(f.ctx, core.WorkflowConfig{DepartmentID: "it", Kind: "timesheet", Levels: core.DefaultWorkflow()}, "hr-1")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.workflow.SaveWorkflow(f.ctx, core.WorkflowConfig{
		DepartmentID: "it", Kind: core.KindLeaveRequest, PassSlipType: core.PassSlipOfficial, Levels: core.DefaultWorkflow(),
	}, "hr-1")
	assert.ErrorIs(t, err, core.ErrValidation, "pass slip type only applies to pass slips")
}

func TestResolveConfig_Fallbacks(t *testing.T) {
	f := newFixture(t)

	// no configuration: single supervisor level
	levels, err := f.workflow.ResolveConfig(f.ctx, "it", core.KindLeaveRequest, "")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultWorkflow(), levels)

	// a generic pass slip chain serves every slip type without its own
	f.saveWorkflow(t, "it", core.KindPassSlip, supervisorLevel, headLevel)
	levels, err = f.workflow.ResolveConfig(f.ctx, "it", core.KindPassSlip, core.PassSlipPersonal)
	require.NoError(t, err)
	assert.Len(t, levels, 2)

	_, err = f.workflow.SaveWorkflow(f.ctx, core.WorkflowConfig{
		DepartmentID: "it", Kind: core.KindPassSlip, PassSlipType: core.PassSlipOfficial, Levels: core.DefaultWorkflow(),
	}, "hr-1")
	require.NoError(t, err)
	levels, err = f.workflow.ResolveConfig(f.ctx, "it", core.KindPassSlip, core.PassSlipOfficial)
	require.NoError(t, err)
	assert.Len(t, levels, 1)
}

func TestMultiLevelApproval_DebitsOnlyOnFinalLevel(t *testing.T) {
	// GIVEN: supervisor, department head and parent-office director
	f := newFixture(t)
	f.saveWorkflow(t, "it", core.KindLeaveRequest, supervisorLevel, headLevel, directorLevel)
	f.provision(t, "emp-1", f.vl, "15")
	req := f.file(t, "emp-1", f.vl, "2026-03-09", "2026-03-11")
	require.Len(t, req.WorkflowLevels, 3)

	// WHEN: level 1 approves
	req, err := f.manager.Approve(f.ctx, req.ID, "sup-1", "ok")
	require.NoError(t, err)

	// THEN: the request waits on level 2 and nothing is debited
	assert.Equal(t, core.StatusPending, req.Status)
	assert.Equal(t, 2, req.Level)
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("15")))

	// a supervisor cannot act on the department head's level
	_, err = f.manager.Approve(f.ctx, req.ID, "sup-1", "")
	assert.ErrorIs(t, err, core.ErrNotAuthorized)

	req, err = f.manager.Approve(f.ctx, req.ID, "head-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, req.Level)

	req, err = f.manager.Approve(f.ctx, req.ID, "dir-1", "approved for travel")
	require.NoError(t, err)
	assert.Equal(t, core.StatusApproved, req.Status)
	assert.Equal(t, "dir-1", req.ApprovedBy)
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("12")))

	history, err := f.manager.ListApprovals(f.ctx, core.KindLeaveRequest, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, a := range history {
		assert.Equal(t, i+1, a.Level)
		assert.Equal(t, core.ActionApproved, a.Action)
		assert.NotNil(t, a.DecidedAt)
	}
}

func TestOptionalLevel_DenialAdvances(t *testing.T) {
	f := newFixture(t)
	optional := supervisorLevel
	optional.Required = false
	f.saveWorkflow(t, "it", core.KindLeaveRequest, optional, headLevel)
	f.provision(t, "emp-1", f.vl, "15")
	req := f.file(t, "emp-1", f.vl, "2026-03-09", "2026-03-09")

	req, err := f.manager.Deny(f.ctx, req.ID, "sup-1", "I would rather not, but it is optional")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, req.Status)
	assert.Equal(t, 2, req.Level)

	req, err = f.manager.Approve(f.ctx, req.ID, "head-1", "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusApproved, req.Status)
	assert.True(t, f.balance(t, "emp-1", f.vl).Equal(days("14")))
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	f.provision(t, "emp-1", f.vl, "15")
	f.provision(t, "sup-1", f.vl, "15")

	t.Run("supervisor of another department", func(t *testing.T) {
		req := f.file(t, "emp-1", f.vl, "2026-03-09", "2026-03-09")
		_, err := f.manager.Approve(f.ctx, req.ID, "sup-ops", "")

		var nae *core.NotAuthorizedError
		require.ErrorAs(t, err, &nae)
		assert.Equal(t, "sup-ops", nae.ApproverID)
	})

	t.Run("own request", func(t *testing.T) {
		req := f.file(t, "sup-1", f.vl, "2026-03-16", "2026-03-16")
		_, err := f.manager.Approve(f.ctx, req.ID, "sup-1", "")
		assert.ErrorIs(t, err, core.ErrNotAuthorized)
	})

	t.Run("unknown approver", func(t *testing.T) {
		req := f.file(t, "emp-1", f.vl, "2026-03-17", "2026-03-17")
		_, err := f.manager.Approve(f.ctx, req.ID, "ghost", "")
		assert.ErrorIs(t, err, core.ErrNotAuthorized)
	})

	t.Run("hr admin may decide any level", func(t *testing.T) {
		req := f.file(t, "emp-1", f.vl, "2026-03-18", "2026-03-18")
		req, err := f.manager.Approve(f.ctx, req.ID, "hr-1", "")
		require.NoError(t, err)
		assert.Equal(t, core.StatusApproved, req.Status)
	})
}

func TestPendingApprovals_ByRole(t *testing.T) {
	f := newFixture(t)
	f.saveWorkflow(t, "it", core.KindLeaveRequest, supervisorLevel, headLevel)
	f.provision(t, "emp-1", f.vl, "15")
	req := f.file(t, "emp-1", f.vl, "2026-03-09", "2026-03-10")

	forSupervisors, err := f.manager.PendingApprovals(f.ctx, core.KindLeaveRequest, core.RoleSupervisor)
	require.NoError(t, err)
	require.Len(t, forSupervisors, 1)
	assert.Equal(t, req.ID, forSupervisors[0].EntityID)

	forHeads, err := f.manager.PendingApprovals(f.ctx, core.KindLeaveRequest, core.RoleDepartmentHead)
	require.NoError(t, err)
	assert.Empty(t, forHeads)

	_, err = f.manager.Approve(f.ctx, req.ID, "sup-1", "")
	require.NoError(t, err)

	forHeads, err = f.manager.PendingApprovals(f.ctx, core.KindLeaveRequest, core.RoleDepartmentHead)
	require.NoError(t, err)
	require.Len(t, forHeads, 1)
	assert.Equal(t, 2, forHeads[0].Level)

	all, err := f.manager.PendingApprovals(f.ctx, core.KindLeaveRequest, core.RoleHRAdmin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
