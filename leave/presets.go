/*
Package leave holds the Civil Service presets used to bootstrap a new
installation.

PURPOSE:
  Provides ready-to-use leave types, approval chains and the national
  holiday calendar. Nothing here is required at runtime; an office can
  configure everything through the API instead.

AVAILABLE LEAVE TYPES:
  VL   Vacation Leave            1.25 days/month, monetizable
  SL   Sick Leave                1.25 days/month, monetizable
  SPL  Special Privilege Leave   3 days/year, granted by adjustment
  FL   Mandatory/Forced Leave    5 days/year, granted by adjustment
  ML   Maternity Leave           105 days per occurrence
  PL   Paternity Leave           7 days per occurrence

EXAMPLE:
  created, err := leave.SeedLeaveTypes(ctx, registry)
  levels := leave.TwoLevelWorkflow()

SEE ALSO:
  - core/registry.go: LeaveTypeRegistry
  - core/workflow.go: ApprovalLevel
*/
package leave

import (
	"context"
	"errors"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

var monthlyRate = decimal.RequireFromString("1.25")

func capped(days int64) *decimal.Decimal {
	d := decimal.NewFromInt(days)
	return &d
}

// StandardLeaveTypes returns the leave types of the Omnibus Rules on Leave.
func StandardLeaveTypes() []core.LeaveTypeInput {
	return []core.LeaveTypeInput{
		{Code: "VL", Name: "Vacation Leave", AccrualRate: monthlyRate, Monetizable: true},
		{Code: "SL", Name: "Sick Leave", AccrualRate: monthlyRate, Monetizable: true},
		{Code: "SPL", Name: "Special Privilege Leave", AccrualRate: decimal.Zero, MaxBalance: capped(3)},
		{Code: "FL", Name: "Mandatory/Forced Leave", AccrualRate: decimal.Zero, MaxBalance: capped(5)},
		{Code: "ML", Name: "Maternity Leave", AccrualRate: decimal.Zero, MaxBalance: capped(105)},
		{Code: "PL", Name: "Paternity Leave", AccrualRate: decimal.Zero, MaxBalance: capped(7)},
	}
}

// SeedLeaveTypes creates every standard type whose code is not registered
// yet and returns the ones it created.
func SeedLeaveTypes(ctx context.Context, registry *core.LeaveTypeRegistry) ([]core.LeaveType, error) {
	var created []core.LeaveType
	for _, in := range StandardLeaveTypes() {
		_, err := registry.GetByCode(ctx, in.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, core.ErrNotFound) {
			return created, err
		}
		lt, err := registry.Create(ctx, in)
		if err != nil {
			return created, err
		}
		created = append(created, lt)
	}
	return created, nil
}

// =============================================================================
// APPROVAL CHAINS
// =============================================================================

// SupervisorOnlyWorkflow is the single-level chain, used for pass slips.
func SupervisorOnlyWorkflow() []core.ApprovalLevel {
	return core.DefaultWorkflow()
}

// TwoLevelWorkflow routes through the immediate supervisor and then the
// department head.
func TwoLevelWorkflow() []core.ApprovalLevel {
	return []core.ApprovalLevel{
		{Level: 1, ApproverRole: core.RoleSupervisor, DepartmentScope: core.ScopeSame, Required: true},
		{Level: 2, ApproverRole: core.RoleDepartmentHead, DepartmentScope: core.ScopeSame, Required: true},
	}
}

// DirectorWorkflow adds the director of the parent office as a final,
// required level.
func DirectorWorkflow() []core.ApprovalLevel {
	return append(TwoLevelWorkflow(),
		core.ApprovalLevel{Level: 3, ApproverRole: core.RoleDirector, DepartmentScope: core.ScopeParent, Required: true})
}

// ApplyStandardWorkflows gives a department the two-level leave chain and a
// supervisor-only pass slip chain.
func ApplyStandardWorkflows(ctx context.Context, engine *core.WorkflowEngine, departmentID, actor string) error {
	if _, err := engine.SaveWorkflow(ctx, core.WorkflowConfig{
		DepartmentID: departmentID,
		Kind:         core.KindLeaveRequest,
		Levels:       TwoLevelWorkflow(),
	}, actor); err != nil {
		return err
	}
	_, err := engine.SaveWorkflow(ctx, core.WorkflowConfig{
		DepartmentID: departmentID,
		Kind:         core.KindPassSlip,
		Levels:       SupervisorOnlyWorkflow(),
	}, actor)
	return err
}
