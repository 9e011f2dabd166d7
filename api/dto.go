/*
dto.go - Request bodies and response wrappers for the HTTP API

PURPOSE:
  Domain types in core already carry JSON tags and are returned as-is.
  This file only holds what the API adds on top: request bodies with
  validate tags, and envelopes that combine several domain values.

NAMING CONVENTION:
  - *Request:  request body types from clients
  - *Response: response wrappers

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: decode() runs the validate tags
*/
package api

import (
	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/Kirachon/Monitoring-Tool-sub000/store/sqlite"
	"github.com/shopspring/decimal"
)

// ActorHeader identifies the employee performing a mutation.
const ActorHeader = "X-Actor-ID"

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Details   string           `json:"details,omitempty"`
	Field     string           `json:"field,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
	Requested *decimal.Decimal `json:"requested,omitempty"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

type CreateDepartmentRequest struct {
	ID       string `json:"id" validate:"required,max=50"`
	Name     string `json:"name" validate:"required,max=200"`
	ParentID string `json:"parent_id" validate:"omitempty,max=50"`
}

type CreateEmployeeRequest struct {
	ID               string `json:"id" validate:"required,max=50"`
	Name             string `json:"name" validate:"required,max=200"`
	DepartmentID     string `json:"department_id" validate:"required"`
	EmploymentStatus string `json:"employment_status" validate:"required,oneof=regular probationary casual contractual job_order"`
	Role             string `json:"role" validate:"omitempty,oneof=supervisor department_head hr_admin director"`
	Active           *bool  `json:"active"`
}

// =============================================================================
// LEDGER
// =============================================================================

// ProvisionRequest opens a balance for an employee and leave type.
type ProvisionRequest struct {
	LeaveTypeID    string          `json:"leave_type_id" validate:"required"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// AdjustmentRequest is a signed manual correction; negative amounts debit.
type AdjustmentRequest struct {
	LeaveTypeID string          `json:"leave_type_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason" validate:"required,max=500"`
}

type BalanceResponse struct {
	EmployeeID  string             `json:"employee_id"`
	LeaveTypeID string             `json:"leave_type_id"`
	Balance     decimal.Decimal    `json:"current_balance"`
	History     []core.LeaveCredit `json:"history"`
}

type ReconcileResponse struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	Consistent  bool   `json:"consistent"`
	Problem     string `json:"problem,omitempty"`
}

// =============================================================================
// REQUESTS AND PASS SLIPS
// =============================================================================

// DecisionRequest carries approver comments; Reason is required on deny.
type DecisionRequest struct {
	Comments string `json:"comments" validate:"max=1000"`
	Reason   string `json:"reason" validate:"max=1000"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// LeaveRequestResponse returns a created request together with the advisory
// department conflict report, when one could be computed.
type LeaveRequestResponse struct {
	*core.LeaveRequest
	Conflict *core.ConflictReport `json:"conflict,omitempty"`
}

// =============================================================================
// WORKFLOWS, ACCRUAL, HOLIDAYS
// =============================================================================

type WorkflowResponse struct {
	DepartmentID string               `json:"department_id"`
	Kind         core.EntityKind      `json:"entity_kind"`
	PassSlipType core.PassSlipType    `json:"pass_slip_type,omitempty"`
	Levels       []core.ApprovalLevel `json:"levels"`
}

type RunAccrualRequest struct {
	Year  int `json:"year" validate:"required,min=1900,max=9999"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

type CreateHolidayRequest struct {
	ID        string `json:"id" validate:"omitempty,max=50"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required,max=200"`
	Recurring bool   `json:"recurring"`
}

type DefaultHolidaysRequest struct {
	Year int `json:"year" validate:"omitempty,min=1900,max=9999"`
}

type DefaultHolidaysResponse struct {
	Year     int            `json:"year"`
	Holidays []core.Holiday `json:"holidays"`
}

// AccrualRunResponse pairs the engine's tallies with the stored run record.
type AccrualRunResponse struct {
	Result core.AccrualResult `json:"result"`
	Run    sqlite.AccrualRun  `json:"run"`
}
