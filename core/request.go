/*
request.go - Leave request lifecycle

PURPOSE:
  RequestManager coordinates the ledger and the workflow engine. Every state
  change of a request, the approval it implies and the ledger entry it
  causes commit together or not at all.

STATE MACHINE:
  Pending  --approve (last level)--> Approved
  Pending  --approve (more levels)-> Pending (next level)
  Pending  --deny (required level)-> Denied
  Pending  --cancel--------------->  Cancelled
  Approved --cancel--------------->  Cancelled (days credited back)
  Denied, Cancelled are terminal.

BALANCE CHECKS:
  Creation and modification check the balance without reserving it. Every
  approval re-checks, and the final approval debits under the balance lock,
  so a balance that shrank in the meantime fails the approval instead of
  overdrawing.

SEE ALSO:
  - passslip.go: the same machine without ledger effects
  - workflow.go: level handling
*/
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusDenied    RequestStatus = "denied"
	StatusCancelled RequestStatus = "cancelled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusDenied || s == StatusCancelled
}

// MinDenialReasonLength is the minimum trimmed length of a denial reason.
const MinDenialReasonLength = 10

// DefaultCancellationCutoffDays is how many days before the start date
// cancellations close.
const DefaultCancellationCutoffDays = 1

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID                 string          `json:"id"`
	ReferenceNo        string          `json:"reference_no"`
	EmployeeID         string          `json:"employee_id"`
	DepartmentID       string          `json:"department_id"`
	LeaveTypeID        string          `json:"leave_type_id"`
	DateFrom           time.Time       `json:"date_from"`
	DateTo             time.Time       `json:"date_to"`
	HalfDay            bool            `json:"half_day"`
	NumDays            decimal.Decimal `json:"num_days"`
	Reason             string          `json:"reason,omitempty"`
	Status             RequestStatus   `json:"status"`
	Level              int             `json:"current_level"`
	WorkflowLevels     []ApprovalLevel `json:"workflow_levels"`
	DenialReason       string          `json:"denial_reason,omitempty"`
	ApprovedBy         string          `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	CancelledBy        string          `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedBy          string          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (r *LeaveRequest) Kind() EntityKind          { return KindLeaveRequest }
func (r *LeaveRequest) EntityID() string          { return r.ID }
func (r *LeaveRequest) OwnerID() string           { return r.EmployeeID }
func (r *LeaveRequest) SubjectDepartment() string { return r.DepartmentID }
func (r *LeaveRequest) CurrentLevel() int         { return r.Level }
func (r *LeaveRequest) RequiredLevels() int       { return len(r.WorkflowLevels) }
func (r *LeaveRequest) Levels() []ApprovalLevel   { return r.WorkflowLevels }

// LeaveRequestInput is what an employee submits. num_days is always derived.
type LeaveRequestInput struct {
	LeaveTypeID string `json:"leave_type_id" validate:"required"`
	DateFrom    string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo      string `json:"date_to" validate:"required,datetime=2006-01-02"`
	HalfDay     bool   `json:"half_day"`
	Reason      string `json:"reason" validate:"max=500"`
}

// LeaveRequestChanges modifies a pending request. Nil fields keep their
// current value.
type LeaveRequestChanges struct {
	LeaveTypeID *string `json:"leave_type_id,omitempty" validate:"omitempty,min=1"`
	DateFrom    *string `json:"date_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateTo      *string `json:"date_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	HalfDay     *bool   `json:"half_day,omitempty"`
	Reason      *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// =============================================================================
// MANAGER
// =============================================================================

// ManagerDeps are the collaborators of a RequestManager.
type ManagerDeps struct {
	Store     TxStore
	Ledger    *BalanceLedger
	Registry  *LeaveTypeRegistry
	Workflow  *WorkflowEngine
	Conflicts *ConflictDetector
	Calendar  HolidayCalendar
	Directory EmployeeDirectory
	Audit     AuditLogger
}

// ManagerConfig tunes the lifecycle rules.
type ManagerConfig struct {
	// CancellationCutoffDays: a cancellation is rejected when the leave starts
	// in fewer than this many days. Nil means DefaultCancellationCutoffDays,
	// zero allows same-day cancellation and negative disables the cutoff.
	CancellationCutoffDays *int
	// Location decides what "today" is. Defaults to UTC.
	Location *time.Location
	Now      Clock
}

type RequestManager struct {
	store     TxStore
	ledger    *BalanceLedger
	registry  *LeaveTypeRegistry
	workflow  *WorkflowEngine
	conflicts *ConflictDetector
	calendar  HolidayCalendar
	directory EmployeeDirectory
	audit     AuditLogger
	logger    *zap.Logger

	cutoffDays int
	loc        *time.Location
	now        Clock
}

func NewRequestManager(deps ManagerDeps, cfg ManagerConfig, logger ...*zap.Logger) *RequestManager {
	cutoff := DefaultCancellationCutoffDays
	if cfg.CancellationCutoffDays != nil {
		cutoff = *cfg.CancellationCutoffDays
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	calendar := deps.Calendar
	if calendar == nil {
		calendar = NewWorkdayCalendar(nil)
	}
	return &RequestManager{
		store:      deps.Store,
		ledger:     deps.Ledger,
		registry:   deps.Registry,
		workflow:   deps.Workflow,
		conflicts:  deps.Conflicts,
		calendar:   calendar,
		directory:  deps.Directory,
		audit:      deps.Audit,
		logger:     namedLogger("leave.requests", logger),
		cutoffDays: cutoff,
		loc:        loc,
		now:        now,
	}
}

// CreateLeaveRequest files a new pending request for employeeID. The
// conflict report is advisory and may be nil when it could not be computed.
func (m *RequestManager) CreateLeaveRequest(ctx context.Context, employeeID string, in LeaveRequestInput) (*LeaveRequest, *ConflictReport, error) {
	m.logger.Debug("create leave request",
		zap.String("employee_id", employeeID),
		zap.String("leave_type_id", in.LeaveTypeID),
		zap.String("date_from", in.DateFrom),
		zap.String("date_to", in.DateTo),
	)
	if err := ValidateStruct(in); err != nil {
		return nil, nil, err
	}
	from, err := ParseDate("date_from", in.DateFrom)
	if err != nil {
		return nil, nil, err
	}
	to, err := ParseDate("date_to", in.DateTo)
	if err != nil {
		return nil, nil, err
	}

	emp, err := m.employee(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	lt, err := m.activeLeaveType(ctx, in.LeaveTypeID)
	if err != nil {
		return nil, nil, err
	}
	days, err := m.countDays(ctx, from, to, in.HalfDay)
	if err != nil {
		return nil, nil, err
	}
	if err := m.checkBalance(ctx, employeeID, lt.ID, days); err != nil {
		m.logger.Warn("leave request rejected", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, nil, err
	}
	report := m.conflictReport(ctx, emp.DepartmentID, from, to)
	levels, err := m.workflow.ResolveConfig(ctx, emp.DepartmentID, KindLeaveRequest, "")
	if err != nil {
		return nil, nil, err
	}

	now := m.now().UTC()
	req := &LeaveRequest{
		ID:             uuid.NewString(),
		EmployeeID:     employeeID,
		DepartmentID:   emp.DepartmentID,
		LeaveTypeID:    lt.ID,
		DateFrom:       from,
		DateTo:         to,
		HalfDay:        in.HalfDay,
		NumDays:        days,
		Reason:         strings.TrimSpace(in.Reason),
		Status:         StatusPending,
		Level:          levels[0].Level,
		WorkflowLevels: levels,
		CreatedBy:      employeeID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = m.store.WithTx(ctx, func(s Store) error {
		if err := rejectOwnOverlap(ctx, s, req); err != nil {
			return err
		}
		ref, err := nextReference(ctx, s, "LR", from.Year())
		if err != nil {
			return err
		}
		req.ReferenceNo = ref
		if err := s.InsertLeaveRequest(ctx, *req); err != nil {
			return fmt.Errorf("insert leave request: %w", err)
		}
		_, err = m.workflow.Start(ctx, s, req)
		return err
	})
	if err != nil {
		m.logFailure("create leave request", "", err)
		return nil, nil, err
	}

	m.logger.Info("leave request created",
		zap.String("request_id", req.ID),
		zap.String("reference_no", req.ReferenceNo),
		zap.String("num_days", FormatDays(req.NumDays)),
	)
	m.auditRequest(ctx, AuditLeaveRequestCreated, employeeID, req, map[string]any{
		"num_days": FormatDays(req.NumDays),
		"levels":   len(levels),
	})
	return req, report, nil
}

// Approve records an approval on the request's current level. The ledger is
// debited when the last level approves.
func (m *RequestManager) Approve(ctx context.Context, requestID, approverID, comments string) (*LeaveRequest, error) {
	return m.decide(ctx, requestID, approverID, ActionApproved, strings.TrimSpace(comments))
}

// Deny records a denial on the request's current level.
func (m *RequestManager) Deny(ctx context.Context, requestID, approverID, reason string) (*LeaveRequest, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinDenialReasonLength {
		return nil, newValidationError("reason", "must be at least %d characters", MinDenialReasonLength)
	}
	return m.decide(ctx, requestID, approverID, ActionDenied, reason)
}

func (m *RequestManager) decide(ctx context.Context, requestID, approverID string, action ApprovalAction, comments string) (*LeaveRequest, error) {
	verb := "approve"
	if action == ActionDenied {
		verb = "deny"
	}

	// Authorization reads the directory, so it runs against the current
	// snapshot before the transaction; the transaction re-checks the level.
	snapshot, err := m.GetLeaveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if snapshot.Status != StatusPending {
		return nil, &StateConflictError{Resource: "leave_request", ID: requestID, Status: string(snapshot.Status), Action: verb}
	}
	if err := m.workflow.Authorize(ctx, snapshot, approverID); err != nil {
		return nil, err
	}

	var (
		result   *LeaveRequest
		decision Decision
		usage    *LeaveCredit
	)
	err = m.store.WithTx(ctx, func(s Store) error {
		req, err := loadLeaveRequest(ctx, s, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &StateConflictError{Resource: "leave_request", ID: req.ID, Status: string(req.Status), Action: verb}
		}
		if req.Level != snapshot.Level {
			return &StateConflictError{Resource: "leave_request", ID: req.ID, Action: verb}
		}
		if action == ActionApproved {
			bal, err := s.GetBalance(ctx, req.EmployeeID, req.LeaveTypeID)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}
			if bal == nil {
				return balanceNotFound(req.EmployeeID, req.LeaveTypeID)
			}
			if bal.CurrentBalance.LessThan(req.NumDays) {
				return &InsufficientBalanceError{
					EmployeeID: req.EmployeeID, LeaveTypeID: req.LeaveTypeID,
					Available: bal.CurrentBalance, Requested: req.NumDays,
				}
			}
		}

		decision, err = m.workflow.Decide(ctx, s, req, DecideInput{ApproverID: approverID, Action: action, Comments: comments})
		if err != nil {
			return err
		}

		now := m.now().UTC()
		switch decision.Outcome {
		case OutcomeAdvanced:
			req.Level = decision.NextLevel
		case OutcomeCompleted:
			entry, err := m.ledger.DebitTx(ctx, s, Posting{
				EmployeeID:  req.EmployeeID,
				LeaveTypeID: req.LeaveTypeID,
				Amount:      req.NumDays,
				Type:        CreditUsage,
				Reason:      "Leave usage - " + req.ReferenceNo,
				ReferenceID: req.ID,
				Actor:       approverID,
			})
			if err != nil {
				return err
			}
			usage = &entry
			req.Status = StatusApproved
			req.ApprovedBy = approverID
			req.ApprovedAt = &now
		case OutcomeDenied:
			req.Status = StatusDenied
			req.DenialReason = comments
		}
		req.UpdatedAt = now
		if err := s.UpdateLeaveRequest(ctx, *req, StatusPending); err != nil {
			return conflictOrErr(err, "leave_request", req.ID, verb)
		}
		result = req
		return nil
	})
	if err != nil {
		m.logFailure(verb+" leave request", requestID, err)
		return nil, err
	}

	auditActions := map[Outcome]AuditAction{
		OutcomeAdvanced:  AuditLeaveRequestAdvanced,
		OutcomeCompleted: AuditLeaveRequestApproved,
		OutcomeDenied:    AuditLeaveRequestDenied,
	}
	details := map[string]any{"level": decision.Approval.Level, "action": string(action), "comments": comments}
	if usage != nil {
		details["ledger_entry_id"] = usage.ID
		details["balance_after"] = FormatDays(usage.BalanceAfter)
	}
	m.logger.Info("leave request decided",
		zap.String("request_id", result.ID),
		zap.String("reference_no", result.ReferenceNo),
		zap.String("outcome", string(decision.Outcome)),
		zap.Int("level", decision.Approval.Level),
	)
	m.auditRequest(ctx, auditActions[decision.Outcome], approverID, result, details)
	return result, nil
}

// Cancel withdraws a pending or approved request. Approved days are
// credited back in the same transaction.
func (m *RequestManager) Cancel(ctx context.Context, requestID, actorID, reason string) (*LeaveRequest, error) {
	var (
		result   *LeaveRequest
		reversal *LeaveCredit
	)
	today := TodayIn(m.now, m.loc)
	hr, err := m.actorIsHR(ctx, actorID)
	if err != nil {
		return nil, err
	}
	err = m.store.WithTx(ctx, func(s Store) error {
		req, err := loadLeaveRequest(ctx, s, requestID)
		if err != nil {
			return err
		}
		if err := m.authorizeOwner(req.EmployeeID, actorID, hr, "cancel"); err != nil {
			return err
		}
		if req.Status.Terminal() {
			return &StateConflictError{Resource: "leave_request", ID: req.ID, Status: string(req.Status), Action: "cancel"}
		}
		if diff := DaysBetween(today, req.DateFrom); m.cutoffDays >= 0 && diff < m.cutoffDays {
			return &CancellationWindowError{DateFrom: req.DateFrom, DaysBefore: diff, CutoffDays: m.cutoffDays}
		}

		prev := req.Status
		if prev == StatusApproved {
			entry, err := m.ledger.CreditTx(ctx, s, Posting{
				EmployeeID:  req.EmployeeID,
				LeaveTypeID: req.LeaveTypeID,
				Amount:      req.NumDays,
				Type:        CreditCancellationReversal,
				Reason:      "Cancellation reversal - " + req.ReferenceNo,
				ReferenceID: req.ID,
				Actor:       actorID,
			})
			if err != nil {
				return err
			}
			reversal = &entry
		} else if err := m.workflow.Abandon(ctx, s, req); err != nil {
			return err
		}

		now := m.now().UTC()
		req.Status = StatusCancelled
		req.CancelledBy = actorID
		req.CancelledAt = &now
		req.CancellationReason = strings.TrimSpace(reason)
		req.UpdatedAt = now
		if err := s.UpdateLeaveRequest(ctx, *req, prev); err != nil {
			return conflictOrErr(err, "leave_request", req.ID, "cancel")
		}
		result = req
		return nil
	})
	if err != nil {
		m.logFailure("cancel leave request", requestID, err)
		return nil, err
	}

	details := map[string]any{"reason": result.CancellationReason}
	if reversal != nil {
		details["ledger_entry_id"] = reversal.ID
		details["balance_after"] = FormatDays(reversal.BalanceAfter)
	}
	m.logger.Info("leave request cancelled", zap.String("request_id", result.ID), zap.String("reference_no", result.ReferenceNo))
	m.auditRequest(ctx, AuditLeaveRequestCancelled, actorID, result, details)
	return result, nil
}

// Modify changes a pending request, recomputes its days and restarts its
// workflow from the first level.
func (m *RequestManager) Modify(ctx context.Context, requestID, actorID string, ch LeaveRequestChanges) (*LeaveRequest, error) {
	if err := ValidateStruct(ch); err != nil {
		return nil, err
	}
	current, err := m.GetLeaveRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	hr, err := m.actorIsHR(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := m.authorizeOwner(current.EmployeeID, actorID, hr, "modify"); err != nil {
		m.logFailure("modify leave request", requestID, err)
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, &StateConflictError{Resource: "leave_request", ID: requestID, Status: string(current.Status), Action: "modify"}
	}

	next := *current
	if ch.LeaveTypeID != nil {
		next.LeaveTypeID = *ch.LeaveTypeID
	}
	if ch.DateFrom != nil {
		if next.DateFrom, err = ParseDate("date_from", *ch.DateFrom); err != nil {
			return nil, err
		}
	}
	if ch.DateTo != nil {
		if next.DateTo, err = ParseDate("date_to", *ch.DateTo); err != nil {
			return nil, err
		}
	}
	if ch.HalfDay != nil {
		next.HalfDay = *ch.HalfDay
	}
	if ch.Reason != nil {
		next.Reason = strings.TrimSpace(*ch.Reason)
	}

	if _, err := m.activeLeaveType(ctx, next.LeaveTypeID); err != nil {
		return nil, err
	}
	if next.NumDays, err = m.countDays(ctx, next.DateFrom, next.DateTo, next.HalfDay); err != nil {
		return nil, err
	}
	if err := m.checkBalance(ctx, next.EmployeeID, next.LeaveTypeID, next.NumDays); err != nil {
		return nil, err
	}
	levels, err := m.workflow.ResolveConfig(ctx, next.DepartmentID, KindLeaveRequest, "")
	if err != nil {
		return nil, err
	}
	next.WorkflowLevels = levels
	next.Level = levels[0].Level
	next.UpdatedAt = m.now().UTC()

	err = m.store.WithTx(ctx, func(s Store) error {
		req, err := loadLeaveRequest(ctx, s, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &StateConflictError{Resource: "leave_request", ID: req.ID, Status: string(req.Status), Action: "modify"}
		}
		if err := rejectOwnOverlap(ctx, s, &next); err != nil {
			return err
		}
		if _, err := m.workflow.Reset(ctx, s, &next); err != nil {
			return err
		}
		if err := s.UpdateLeaveRequest(ctx, next, StatusPending); err != nil {
			return conflictOrErr(err, "leave_request", req.ID, "modify")
		}
		return nil
	})
	if err != nil {
		m.logFailure("modify leave request", requestID, err)
		return nil, err
	}

	m.auditRequest(ctx, AuditLeaveRequestModified, actorID, &next, map[string]any{
		"previous_num_days": FormatDays(current.NumDays),
		"num_days":          FormatDays(next.NumDays),
		"date_from":         next.DateFrom.Format(DateLayout),
		"date_to":           next.DateTo.Format(DateLayout),
	})
	return &next, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (m *RequestManager) GetLeaveRequest(ctx context.Context, id string) (*LeaveRequest, error) {
	return loadLeaveRequest(ctx, m.store, id)
}

func (m *RequestManager) ListLeaveRequests(ctx context.Context, f LeaveRequestFilter) ([]LeaveRequest, error) {
	rs, err := m.store.ListLeaveRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	return rs, nil
}

func (m *RequestManager) ListApprovals(ctx context.Context, kind EntityKind, entityID string) ([]Approval, error) {
	return m.workflow.History(ctx, kind, entityID)
}

// PendingApprovals lists live pending approvals of a kind whose current
// level is assigned to role. An empty role matches every level.
func (m *RequestManager) PendingApprovals(ctx context.Context, kind EntityKind, role ApproverRole) ([]Approval, error) {
	pending, err := m.workflow.Pending(ctx, kind)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return pending, nil
	}
	var out []Approval
	for _, a := range pending {
		var levels []ApprovalLevel
		switch kind {
		case KindLeaveRequest:
			r, err := m.store.GetLeaveRequest(ctx, a.EntityID)
			if err != nil {
				return nil, fmt.Errorf("get leave request: %w", err)
			}
			if r != nil {
				levels = r.WorkflowLevels
			}
		case KindPassSlip:
			p, err := m.store.GetPassSlip(ctx, a.EntityID)
			if err != nil {
				return nil, fmt.Errorf("get pass slip: %w", err)
			}
			if p != nil {
				levels = p.WorkflowLevels
			}
		}
		if lvl, _, ok := levelAt(levels, a.Level); ok && (lvl.ApproverRole == role || role == RoleHRAdmin) {
			out = append(out, a)
		}
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *RequestManager) employee(ctx context.Context, id string) (*Employee, error) {
	if id == "" {
		return nil, newValidationError("employee_id", "is required")
	}
	if m.directory == nil {
		return &Employee{ID: id, Active: true}, nil
	}
	emp, err := m.directory.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	if emp == nil {
		return nil, &NotFoundError{Resource: "employee", ID: id}
	}
	if !emp.Active {
		return nil, newValidationError("employee_id", "employee %s is inactive", id)
	}
	return emp, nil
}

// actorIsHR reports whether actorID is an active HR admin. Unknown actors
// are not HR. Without a directory every actor is trusted.
func (m *RequestManager) actorIsHR(ctx context.Context, actorID string) (bool, error) {
	if m.directory == nil {
		return true, nil
	}
	emp, err := m.directory.GetEmployee(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("get actor: %w", err)
	}
	return emp != nil && emp.Active && emp.Role == RoleHRAdmin, nil
}

// authorizeOwner lets only the filing employee or HR withdraw or change a
// filing.
func (m *RequestManager) authorizeOwner(ownerID, actorID string, hr bool, action string) error {
	if actorID == ownerID || hr {
		return nil
	}
	return &NotAuthorizedError{ApproverID: actorID, Reason: "only the filing employee or HR may " + action + " it"}
}

func (m *RequestManager) activeLeaveType(ctx context.Context, id string) (LeaveType, error) {
	lt, err := m.registry.Get(ctx, id)
	if err != nil {
		return LeaveType{}, err
	}
	if !lt.Active {
		return LeaveType{}, newValidationError("leave_type_id", "leave type %s is inactive", lt.Code)
	}
	return lt, nil
}

func (m *RequestManager) countDays(ctx context.Context, from, to time.Time, halfDay bool) (decimal.Decimal, error) {
	if to.Before(from) {
		return decimal.Zero, newValidationError("date_to", "must not be before date_from")
	}
	if halfDay && !from.Equal(to) {
		return decimal.Zero, newValidationError("half_day", "only allowed for single-day requests")
	}
	n, err := m.calendar.WorkingDaysBetween(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if n == 0 {
		return decimal.Zero, newValidationError("date_from", "range contains no working days")
	}
	if halfDay {
		return HalfDay, nil
	}
	return decimal.NewFromInt(int64(n)), nil
}

// checkBalance is advisory: it reserves nothing.
func (m *RequestManager) checkBalance(ctx context.Context, employeeID, leaveTypeID string, days decimal.Decimal) error {
	bal, err := m.ledger.GetBalance(ctx, employeeID, leaveTypeID)
	if err != nil {
		return err
	}
	if bal.LessThan(days) {
		return newValidationError("num_days", "insufficient balance: available %s, requested %s", FormatDays(bal), FormatDays(days))
	}
	return nil
}

func (m *RequestManager) conflictReport(ctx context.Context, departmentID string, from, to time.Time) *ConflictReport {
	if m.conflicts == nil || departmentID == "" {
		return nil
	}
	r, err := m.conflicts.CheckOverlap(ctx, departmentID, from, to)
	if err != nil {
		m.logger.Warn("conflict check failed", zap.String("department_id", departmentID), zap.Error(err))
		return nil
	}
	return &r
}

func (m *RequestManager) logFailure(op, requestID string, err error) {
	fields := []zap.Field{zap.String("request_id", requestID), zap.Error(err)}
	if isBusinessError(err) {
		m.logger.Warn(op+" rejected", fields...)
		return
	}
	m.logger.Error(op+" failed", fields...)
}

func (m *RequestManager) auditRequest(ctx context.Context, action AuditAction, actor string, r *LeaveRequest, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["reference_no"] = r.ReferenceNo
	details["status"] = string(r.Status)
	recordAudit(ctx, m.audit, m.logger, AuditEvent{
		Action:     action,
		ActorID:    actor,
		EntityKind: string(KindLeaveRequest),
		EntityID:   r.ID,
		EmployeeID: r.EmployeeID,
		Details:    details,
		At:         r.UpdatedAt,
	})
}

func loadLeaveRequest(ctx context.Context, s RequestStore, id string) (*LeaveRequest, error) {
	r, err := s.GetLeaveRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get leave request: %w", err)
	}
	if r == nil {
		return nil, &NotFoundError{Resource: "leave_request", ID: id}
	}
	return r, nil
}

// rejectOwnOverlap fails when the employee already has a pending or
// approved request sharing a day with r.
func rejectOwnOverlap(ctx context.Context, s RequestStore, r *LeaveRequest) error {
	from, to := r.DateFrom, r.DateTo
	existing, err := s.ListLeaveRequests(ctx, LeaveRequestFilter{
		EmployeeID: r.EmployeeID,
		Statuses:   []RequestStatus{StatusPending, StatusApproved},
		From:       &from,
		To:         &to,
	})
	if err != nil {
		return fmt.Errorf("list leave requests: %w", err)
	}
	for _, other := range existing {
		if other.ID != r.ID && RangesOverlap(r.DateFrom, r.DateTo, other.DateFrom, other.DateTo) {
			return newValidationError("date_from", "overlaps request %s", other.ReferenceNo)
		}
	}
	return nil
}

// nextReference builds PREFIX-YYYY-NNNNNN from a per-year counter.
func nextReference(ctx context.Context, s RequestStore, prefix string, year int) (string, error) {
	key := fmt.Sprintf("%s-%d", prefix, year)
	n, err := s.NextSequence(ctx, key)
	if err != nil {
		return "", fmt.Errorf("next reference: %w", err)
	}
	return fmt.Sprintf("%s-%06d", key, n), nil
}

func conflictOrErr(err error, resource, id, action string) error {
	if errors.Is(err, ErrStateConflict) {
		return &StateConflictError{Resource: resource, ID: id, Action: action}
	}
	return fmt.Errorf("update %s: %w", resource, err)
}

func isBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrNotAuthorized)
}
