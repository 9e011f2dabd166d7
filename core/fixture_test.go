package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/Kirachon/Monitoring-Tool-sub000/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Monday 2 March 2026, 09:00 UTC.
var fixedNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func clockAt(t time.Time) core.Clock { return func() time.Time { return t } }

func days(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) time.Time {
	d, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// fixture wires every service over one in-memory store. The directory is:
//
//	ops (director dir-1, hr-1, sup-ops)
//	└── it (emp-1, emp-2, sup-1, head-1; jo-1 is a job order)
type fixture struct {
	ctx       context.Context
	store     *sqlite.Store
	registry  *core.LeaveTypeRegistry
	ledger    *core.BalanceLedger
	workflow  *core.WorkflowEngine
	conflicts *core.ConflictDetector
	manager   *core.RequestManager
	accrual   *core.AccrualEngine

	vl core.LeaveType
	sl core.LeaveType
}

type fixtureOption func(*core.ManagerConfig)

func withCutoff(daysBefore int) fixtureOption {
	return func(c *core.ManagerConfig) { c.CancellationCutoffDays = &daysBefore }
}

func withNow(t time.Time) fixtureOption {
	return func(c *core.ManagerConfig) { c.Now = clockAt(t) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, d := range []core.Department{
		{ID: "ops", Name: "Office of Operations"},
		{ID: "it", Name: "IT Division", ParentID: "ops"},
	} {
		require.NoError(t, store.SaveDepartment(ctx, d))
	}
	for _, e := range []core.Employee{
		{ID: "emp-1", Name: "Juan Dela Cruz", DepartmentID: "it", EmploymentStatus: core.EmploymentRegular, Active: true},
		{ID: "emp-2", Name: "Maria Santos", DepartmentID: "it", EmploymentStatus: core.EmploymentRegular, Active: true},
		{ID: "jo-1", Name: "Pedro Reyes", DepartmentID: "it", EmploymentStatus: core.EmploymentJobOrder, Active: true},
		{ID: "sup-1", Name: "Ana Lim", DepartmentID: "it", EmploymentStatus: core.EmploymentRegular, Role: core.RoleSupervisor, Active: true},
		{ID: "head-1", Name: "Jose Rizal", DepartmentID: "it", EmploymentStatus: core.EmploymentRegular, Role: core.RoleDepartmentHead, Active: true},
		{ID: "sup-ops", Name: "Liza Soberano", DepartmentID: "ops", EmploymentStatus: core.EmploymentRegular, Role: core.RoleSupervisor, Active: true},
		{ID: "dir-1", Name: "Andres Bonifacio", DepartmentID: "ops", EmploymentStatus: core.EmploymentRegular, Role: core.RoleDirector, Active: true},
		{ID: "hr-1", Name: "Gabriela Silang", DepartmentID: "ops", EmploymentStatus: core.EmploymentRegular, Role: core.RoleHRAdmin, Active: true},
	} {
		require.NoError(t, store.SaveEmployee(ctx, e))
	}

	cfg := core.ManagerConfig{Now: clockAt(fixedNow)}
	for _, o := range opts {
		o(&cfg)
	}

	f := &fixture{ctx: ctx, store: store}
	f.registry = core.NewLeaveTypeRegistry(store)
	f.registry.SetClock(cfg.Now)
	f.ledger = core.NewBalanceLedger(store, store)
	f.ledger.SetClock(cfg.Now)
	f.workflow = core.NewWorkflowEngine(store, store, store)
	f.workflow.SetClock(cfg.Now)
	f.conflicts = core.NewConflictDetector(store, store, 0)
	f.manager = core.NewRequestManager(core.ManagerDeps{
		Store:     store,
		Ledger:    f.ledger,
		Registry:  f.registry,
		Workflow:  f.workflow,
		Conflicts: f.conflicts,
		Calendar:  core.NewWorkdayCalendar(store),
		Directory: store,
		Audit:     store,
	}, cfg)
	f.accrual = core.NewAccrualEngine(f.ledger, f.registry, store)

	f.vl, err = f.registry.Create(ctx, core.LeaveTypeInput{
		Code: "VL", Name: "Vacation Leave", AccrualRate: days("1.25"), MaxBalance: ptr(days("300")), Monetizable: true,
	})
	require.NoError(t, err)
	f.sl, err = f.registry.Create(ctx, core.LeaveTypeInput{
		Code: "SL", Name: "Sick Leave", AccrualRate: days("1.25"), Monetizable: true,
	})
	require.NoError(t, err)
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) provision(t *testing.T, employeeID string, lt core.LeaveType, opening string) {
	t.Helper()
	_, err := f.ledger.Provision(f.ctx, employeeID, lt.ID, days(opening), "hr-1")
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, employeeID string, lt core.LeaveType) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.GetBalance(f.ctx, employeeID, lt.ID)
	require.NoError(t, err)
	return b
}

func (f *fixture) saveWorkflow(t *testing.T, dept string, kind core.EntityKind, levels ...core.ApprovalLevel) {
	t.Helper()
	_, err := f.workflow.SaveWorkflow(f.ctx, core.WorkflowConfig{DepartmentID: dept, Kind: kind, Levels: levels}, "hr-1")
	require.NoError(t, err)
}

func (f *fixture) file(t *testing.T, employeeID string, lt core.LeaveType, from, to string) *core.LeaveRequest {
	t.Helper()
	req, _, err := f.manager.CreateLeaveRequest(f.ctx, employeeID, core.LeaveRequestInput{
		LeaveTypeID: lt.ID, DateFrom: from, DateTo: to, Reason: "family matters",
	})
	require.NoError(t, err)
	return req
}
