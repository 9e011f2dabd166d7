/*
store.go - Persistence interfaces

PURPOSE:
  Services depend on these interfaces, never on a concrete database. A
  TxStore runs a function inside one transaction; the Store handed to the
  function must be used for every read and write that belongs to the
  transaction, including calls into other services through their *Tx
  variants.

CONVENTIONS:
  - Getters return (nil, nil) when the row does not exist.
  - Conditional updates return ErrStateConflict when no row matched.
  - Uniqueness violations surface as ErrDuplicateKey.
  - Lock timeouts surface as ErrConcurrency.

SEE ALSO:
  - store/sqlite: the SQLite implementation
*/
package core

import (
	"context"
	"time"
)

type LeaveTypeStore interface {
	InsertLeaveType(ctx context.Context, lt LeaveType) error
	UpdateLeaveType(ctx context.Context, lt LeaveType) error
	GetLeaveType(ctx context.Context, id string) (*LeaveType, error)
	GetLeaveTypeByCode(ctx context.Context, code string) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	// ListBalancesByType returns every provisioned balance of a leave type.
	ListBalancesByType(ctx context.Context, leaveTypeID string) ([]LeaveBalance, error)
}

type BalanceStore interface {
	InsertBalance(ctx context.Context, b LeaveBalance) error
	GetBalance(ctx context.Context, employeeID, leaveTypeID string) (*LeaveBalance, error)
	// LockBalance reads the balance and holds its write lock until the
	// surrounding transaction ends.
	LockBalance(ctx context.Context, employeeID, leaveTypeID string) (*LeaveBalance, error)
	UpdateBalance(ctx context.Context, b LeaveBalance) error
	ListBalances(ctx context.Context, employeeID string) ([]LeaveBalance, error)

	// AppendCredit adds a ledger entry. Entries cannot be changed afterwards.
	AppendCredit(ctx context.Context, c LeaveCredit) error
	// ListCredits returns entries oldest first.
	ListCredits(ctx context.Context, employeeID, leaveTypeID string) ([]LeaveCredit, error)
}

// LeaveRequestFilter narrows ListLeaveRequests. Zero fields match anything.
// From and To select requests overlapping the inclusive range.
type LeaveRequestFilter struct {
	EmployeeID   string
	DepartmentID string
	Statuses     []RequestStatus
	From         *time.Time
	To           *time.Time
}

type PassSlipFilter struct {
	EmployeeID   string
	DepartmentID string
	Statuses     []RequestStatus
	Date         *time.Time
}

type RequestStore interface {
	InsertLeaveRequest(ctx context.Context, r LeaveRequest) error
	GetLeaveRequest(ctx context.Context, id string) (*LeaveRequest, error)
	// UpdateLeaveRequest writes r only while the stored status still equals
	// expected.
	UpdateLeaveRequest(ctx context.Context, r LeaveRequest, expected RequestStatus) error
	ListLeaveRequests(ctx context.Context, f LeaveRequestFilter) ([]LeaveRequest, error)
	// CountEmployeesOnLeave counts distinct employees in the department with a
	// pending or approved request overlapping [from, to].
	CountEmployeesOnLeave(ctx context.Context, departmentID string, from, to time.Time) (int, error)

	InsertPassSlip(ctx context.Context, p PassSlip) error
	GetPassSlip(ctx context.Context, id string) (*PassSlip, error)
	UpdatePassSlip(ctx context.Context, p PassSlip, expected RequestStatus) error
	ListPassSlips(ctx context.Context, f PassSlipFilter) ([]PassSlip, error)

	// NextSequence increments and returns the counter for prefix.
	NextSequence(ctx context.Context, prefix string) (int64, error)
}

type ApprovalStore interface {
	// InsertApproval fails with ErrDuplicateKey when a live pending approval
	// already exists for the same entity and level.
	InsertApproval(ctx context.Context, a Approval) error
	// GetLiveApproval returns the non-superseded approval at level.
	GetLiveApproval(ctx context.Context, kind EntityKind, entityID string, level int) (*Approval, error)
	// DecideApproval records a decision on a still-pending approval.
	DecideApproval(ctx context.Context, a Approval) error
	SupersedeApprovals(ctx context.Context, kind EntityKind, entityID string) error
	ListApprovals(ctx context.Context, kind EntityKind, entityID string) ([]Approval, error)
	ListPendingApprovals(ctx context.Context, kind EntityKind) ([]Approval, error)

	SaveWorkflowConfig(ctx context.Context, cfg WorkflowConfig) error
	GetWorkflowConfig(ctx context.Context, departmentID string, kind EntityKind, passSlipType PassSlipType) (*WorkflowConfig, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	LeaveTypeStore
	BalanceStore
	RequestStore
	ApprovalStore
}

// TxStore can run a function inside a single transaction. Nothing fn writes
// is visible unless fn returns nil.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
