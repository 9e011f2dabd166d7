package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PassSlipType distinguishes official errands from personal time out.
type PassSlipType string

const (
	PassSlipOfficial PassSlipType = "official"
	PassSlipPersonal PassSlipType = "personal"
)

func (t PassSlipType) Valid() bool { return t == PassSlipOfficial || t == PassSlipPersonal }

// TimeLayout is the wire format of pass slip clock times.
const TimeLayout = "15:04"

// PassSlip authorizes an employee to leave the office for part of a day.
// It goes through the same approval machine as a leave request but never
// touches the ledger.
type PassSlip struct {
	ID                 string          `json:"id"`
	ReferenceNo        string          `json:"reference_no"`
	EmployeeID         string          `json:"employee_id"`
	DepartmentID       string          `json:"department_id"`
	SlipType           PassSlipType    `json:"slip_type"`
	SlipDate           time.Time       `json:"slip_date"`
	TimeOut            string          `json:"time_out"`
	ExpectedReturn     string          `json:"expected_return"`
	Destination        string          `json:"destination"`
	Purpose            string          `json:"purpose"`
	Status             RequestStatus   `json:"status"`
	Level              int             `json:"current_level"`
	WorkflowLevels     []ApprovalLevel `json:"workflow_levels"`
	DenialReason       string          `json:"denial_reason,omitempty"`
	ApprovedBy         string          `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	CancelledBy        string          `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (p *PassSlip) Kind() EntityKind          { return KindPassSlip }
func (p *PassSlip) EntityID() string          { return p.ID }
func (p *PassSlip) OwnerID() string           { return p.EmployeeID }
func (p *PassSlip) SubjectDepartment() string { return p.DepartmentID }
func (p *PassSlip) CurrentLevel() int         { return p.Level }
func (p *PassSlip) RequiredLevels() int       { return len(p.WorkflowLevels) }
func (p *PassSlip) Levels() []ApprovalLevel   { return p.WorkflowLevels }

type PassSlipInput struct {
	SlipType       string `json:"slip_type" validate:"required,oneof=official personal"`
	SlipDate       string `json:"slip_date" validate:"required,datetime=2006-01-02"`
	TimeOut        string `json:"time_out" validate:"required,datetime=15:04"`
	ExpectedReturn string `json:"expected_return" validate:"required,datetime=15:04"`
	Destination    string `json:"destination" validate:"required,max=200"`
	Purpose        string `json:"purpose" validate:"required,max=500"`
}

// CreatePassSlip files a pending pass slip for employeeID. Slips cannot be
// filed for past dates.
func (m *RequestManager) CreatePassSlip(ctx context.Context, employeeID string, in PassSlipInput) (*PassSlip, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	date, err := ParseDate("slip_date", in.SlipDate)
	if err != nil {
		return nil, err
	}
	if date.Before(TodayIn(m.now, m.loc)) {
		return nil, newValidationError("slip_date", "must not be in the past")
	}
	out, _ := time.Parse(TimeLayout, in.TimeOut)
	back, _ := time.Parse(TimeLayout, in.ExpectedReturn)
	if !back.After(out) {
		return nil, newValidationError("expected_return", "must be after time_out")
	}
	emp, err := m.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	slipType := PassSlipType(in.SlipType)
	levels, err := m.workflow.ResolveConfig(ctx, emp.DepartmentID, KindPassSlip, slipType)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	slip := &PassSlip{
		ID:             uuid.NewString(),
		EmployeeID:     employeeID,
		DepartmentID:   emp.DepartmentID,
		SlipType:       slipType,
		SlipDate:       date,
		TimeOut:        in.TimeOut,
		ExpectedReturn: in.ExpectedReturn,
		Destination:    strings.TrimSpace(in.Destination),
		Purpose:        strings.TrimSpace(in.Purpose),
		Status:         StatusPending,
		Level:          levels[0].Level,
		WorkflowLevels: levels,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = m.store.WithTx(ctx, func(s Store) error {
		ref, err := nextReference(ctx, s, "PS", date.Year())
		if err != nil {
			return err
		}
		slip.ReferenceNo = ref
		if err := s.InsertPassSlip(ctx, *slip); err != nil {
			return fmt.Errorf("insert pass slip: %w", err)
		}
		_, err = m.workflow.Start(ctx, s, slip)
		return err
	})
	if err != nil {
		m.logFailure("create pass slip", "", err)
		return nil, err
	}

	m.logger.Info("pass slip created", zap.String("pass_slip_id", slip.ID), zap.String("reference_no", slip.ReferenceNo))
	m.auditSlip(ctx, AuditPassSlipCreated, employeeID, slip, nil)
	return slip, nil
}

func (m *RequestManager) ApprovePassSlip(ctx context.Context, id, approverID, comments string) (*PassSlip, error) {
	return m.decideSlip(ctx, id, approverID, ActionApproved, strings.TrimSpace(comments))
}

func (m *RequestManager) DenyPassSlip(ctx context.Context, id, approverID, reason string) (*PassSlip, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinDenialReasonLength {
		return nil, newValidationError("reason", "must be at least %d characters", MinDenialReasonLength)
	}
	return m.decideSlip(ctx, id, approverID, ActionDenied, reason)
}

func (m *RequestManager) decideSlip(ctx context.Context, id, approverID string, action ApprovalAction, comments string) (*PassSlip, error) {
	verb := "approve"
	if action == ActionDenied {
		verb = "deny"
	}
	snapshot, err := m.GetPassSlip(ctx, id)
	if err != nil {
		return nil, err
	}
	if snapshot.Status != StatusPending {
		return nil, &StateConflictError{Resource: "pass_slip", ID: id, Status: string(snapshot.Status), Action: verb}
	}
	if err := m.workflow.Authorize(ctx, snapshot, approverID); err != nil {
		return nil, err
	}

	var (
		result   *PassSlip
		decision Decision
	)
	err = m.store.WithTx(ctx, func(s Store) error {
		slip, err := loadPassSlip(ctx, s, id)
		if err != nil {
			return err
		}
		if slip.Status != StatusPending || slip.Level != snapshot.Level {
			return &StateConflictError{Resource: "pass_slip", ID: id, Status: string(slip.Status), Action: verb}
		}
		decision, err = m.workflow.Decide(ctx, s, slip, DecideInput{ApproverID: approverID, Action: action, Comments: comments})
		if err != nil {
			return err
		}
		now := m.now().UTC()
		switch decision.Outcome {
		case OutcomeAdvanced:
			slip.Level = decision.NextLevel
		case OutcomeCompleted:
			slip.Status = StatusApproved
			slip.ApprovedBy = approverID
			slip.ApprovedAt = &now
		case OutcomeDenied:
			slip.Status = StatusDenied
			slip.DenialReason = comments
		}
		slip.UpdatedAt = now
		if err := s.UpdatePassSlip(ctx, *slip, StatusPending); err != nil {
			return conflictOrErr(err, "pass_slip", id, verb)
		}
		result = slip
		return nil
	})
	if err != nil {
		m.logFailure(verb+" pass slip", id, err)
		return nil, err
	}

	auditAction := AuditPassSlipAdvanced
	switch decision.Outcome {
	case OutcomeCompleted:
		auditAction = AuditPassSlipApproved
	case OutcomeDenied:
		auditAction = AuditPassSlipDenied
	}
	m.auditSlip(ctx, auditAction, approverID, result, map[string]any{"level": decision.Approval.Level, "comments": comments})
	return result, nil
}

// CancelPassSlip withdraws a slip until its date has passed.
func (m *RequestManager) CancelPassSlip(ctx context.Context, id, actorID, reason string) (*PassSlip, error) {
	today := TodayIn(m.now, m.loc)
	hr, err := m.actorIsHR(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var result *PassSlip
	err = m.store.WithTx(ctx, func(s Store) error {
		slip, err := loadPassSlip(ctx, s, id)
		if err != nil {
			return err
		}
		if err := m.authorizeOwner(slip.EmployeeID, actorID, hr, "cancel"); err != nil {
			return err
		}
		if slip.Status.Terminal() {
			return &StateConflictError{Resource: "pass_slip", ID: id, Status: string(slip.Status), Action: "cancel"}
		}
		if diff := DaysBetween(today, slip.SlipDate); diff < 0 {
			return &CancellationWindowError{DateFrom: slip.SlipDate, DaysBefore: diff, CutoffDays: 0}
		}
		prev := slip.Status
		if prev == StatusPending {
			if err := m.workflow.Abandon(ctx, s, slip); err != nil {
				return err
			}
		}
		now := m.now().UTC()
		slip.Status = StatusCancelled
		slip.CancelledBy = actorID
		slip.CancelledAt = &now
		slip.CancellationReason = strings.TrimSpace(reason)
		slip.UpdatedAt = now
		if err := s.UpdatePassSlip(ctx, *slip, prev); err != nil {
			return conflictOrErr(err, "pass_slip", id, "cancel")
		}
		result = slip
		return nil
	})
	if err != nil {
		m.logFailure("cancel pass slip", id, err)
		return nil, err
	}
	m.auditSlip(ctx, AuditPassSlipCancelled, actorID, result, map[string]any{"reason": result.CancellationReason})
	return result, nil
}

func (m *RequestManager) GetPassSlip(ctx context.Context, id string) (*PassSlip, error) {
	return loadPassSlip(ctx, m.store, id)
}

func (m *RequestManager) ListPassSlips(ctx context.Context, f PassSlipFilter) ([]PassSlip, error) {
	ps, err := m.store.ListPassSlips(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list pass slips: %w", err)
	}
	return ps, nil
}

func (m *RequestManager) auditSlip(ctx context.Context, action AuditAction, actor string, p *PassSlip, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["reference_no"] = p.ReferenceNo
	details["status"] = string(p.Status)
	recordAudit(ctx, m.audit, m.logger, AuditEvent{
		Action:     action,
		ActorID:    actor,
		EntityKind: string(KindPassSlip),
		EntityID:   p.ID,
		EmployeeID: p.EmployeeID,
		Details:    details,
		At:         p.UpdatedAt,
	})
}

func loadPassSlip(ctx context.Context, s RequestStore, id string) (*PassSlip, error) {
	p, err := s.GetPassSlip(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get pass slip: %w", err)
	}
	if p == nil {
		return nil, &NotFoundError{Resource: "pass_slip", ID: id}
	}
	return p, nil
}
