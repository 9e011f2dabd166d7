package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type AuditAction string

const (
	AuditLeaveTypeCreated AuditAction = "leave_type.created"
	AuditLeaveTypeUpdated AuditAction = "leave_type.updated"

	AuditBalanceProvisioned AuditAction = "ledger.provisioned"
	AuditLedgerCredit       AuditAction = "ledger.credit"
	AuditLedgerDebit        AuditAction = "ledger.debit"
	AuditLedgerAdjustment   AuditAction = "ledger.adjustment"

	AuditLeaveRequestCreated   AuditAction = "leave_request.created"
	AuditLeaveRequestModified  AuditAction = "leave_request.modified"
	AuditLeaveRequestAdvanced  AuditAction = "leave_request.level_approved"
	AuditLeaveRequestApproved  AuditAction = "leave_request.approved"
	AuditLeaveRequestDenied    AuditAction = "leave_request.denied"
	AuditLeaveRequestCancelled AuditAction = "leave_request.cancelled"

	AuditPassSlipCreated   AuditAction = "pass_slip.created"
	AuditPassSlipAdvanced  AuditAction = "pass_slip.level_approved"
	AuditPassSlipApproved  AuditAction = "pass_slip.approved"
	AuditPassSlipDenied    AuditAction = "pass_slip.denied"
	AuditPassSlipCancelled AuditAction = "pass_slip.cancelled"

	AuditWorkflowSaved AuditAction = "workflow.saved"
)

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	Action     AuditAction    `json:"action"`
	ActorID    string         `json:"actor_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	EmployeeID string         `json:"employee_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	At         time.Time      `json:"at"`
}

// AuditLogger records audit events. Callers never fail an operation because
// auditing failed.
type AuditLogger interface {
	Log(ctx context.Context, ev AuditEvent) error
}

// recordAudit writes ev after the owning transaction has committed. Errors
// and panics from the logger are logged and swallowed.
func recordAudit(ctx context.Context, audit AuditLogger, logger *zap.Logger, ev AuditEvent) {
	if audit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("audit logger panicked", zap.String("action", string(ev.Action)), zap.Any("panic", r))
		}
	}()
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := audit.Log(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn("failed to write audit event",
			zap.String("action", string(ev.Action)),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err),
		)
	}
}

func namedLogger(name string, logger []*zap.Logger) *zap.Logger {
	if len(logger) > 0 && logger[0] != nil {
		return logger[0].Named(name)
	}
	return zap.L().Named(name)
}
