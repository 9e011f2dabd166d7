/*
workflow.go - Multi-level approval engine

PURPOSE:
  Leave requests and pass slips move through an ordered list of approval
  levels. Each department can configure its own chain (up to five levels);
  departments without one fall back to a single supervisor level.

LIFECYCLE:
  Start      -> pending approval at the first level
  Decide     -> approve: advance to the next level, or complete at the last
                deny:    the whole entity is denied, unless the level is
                         optional, in which case the chain moves on
  Reset      -> supersede every approval and start again at the first level
  Abandon    -> supersede every approval (entity cancelled)

  The level chain is resolved when the entity is created and stored with
  it, so later configuration edits never reshape an in-flight workflow.

INVARIANTS:
  - At most one live pending approval per (entity, level), enforced by the
    store.
  - A decision only lands on an approval that is still pending.

SEE ALSO:
  - request.go and passslip.go: entities driven through this engine
*/
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type EntityKind string

const (
	KindLeaveRequest EntityKind = "leave_request"
	KindPassSlip     EntityKind = "pass_slip"
)

func (k EntityKind) Valid() bool { return k == KindLeaveRequest || k == KindPassSlip }

type ApproverRole string

const (
	RoleSupervisor     ApproverRole = "supervisor"
	RoleDepartmentHead ApproverRole = "department_head"
	RoleHRAdmin        ApproverRole = "hr_admin"
	RoleDirector       ApproverRole = "director"
)

func (r ApproverRole) Valid() bool {
	switch r {
	case RoleSupervisor, RoleDepartmentHead, RoleHRAdmin, RoleDirector:
		return true
	}
	return false
}

// DepartmentScope says where an approver must sit relative to the
// requester's department.
type DepartmentScope string

const (
	ScopeSame   DepartmentScope = "same"
	ScopeParent DepartmentScope = "parent"
	ScopeAny    DepartmentScope = "any"
)

func (s DepartmentScope) Valid() bool {
	return s == ScopeSame || s == ScopeParent || s == ScopeAny
}

type ApprovalLevel struct {
	Level           int             `json:"level"`
	ApproverRole    ApproverRole    `json:"approver_role"`
	DepartmentScope DepartmentScope `json:"department_scope"`
	Required        bool            `json:"required"`
}

// MaxApprovalLevels bounds the length of a workflow.
const MaxApprovalLevels = 5

// WorkflowConfig is a department's approval chain for one entity kind.
// PassSlipType narrows a pass slip chain to one slip type; empty applies to
// all types.
type WorkflowConfig struct {
	DepartmentID string          `json:"department_id"`
	Kind         EntityKind      `json:"entity_kind"`
	PassSlipType PassSlipType    `json:"pass_slip_type,omitempty"`
	Levels       []ApprovalLevel `json:"levels"`
	UpdatedBy    string          `json:"updated_by"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// DefaultWorkflow is used when a department has no configuration.
func DefaultWorkflow() []ApprovalLevel {
	return []ApprovalLevel{{Level: 1, ApproverRole: RoleSupervisor, DepartmentScope: ScopeSame, Required: true}}
}

// ValidateLevels checks length, ordering and enum values of a chain.
func ValidateLevels(levels []ApprovalLevel) error {
	if len(levels) == 0 {
		return newValidationError("levels", "at least one level is required")
	}
	if len(levels) > MaxApprovalLevels {
		return newValidationError("levels", "at most %d levels are allowed", MaxApprovalLevels)
	}
	prev := 0
	for i, l := range levels {
		if l.Level <= prev {
			return newValidationError(fmt.Sprintf("levels[%d].level", i), "levels must be positive and strictly increasing")
		}
		if !l.ApproverRole.Valid() {
			return newValidationError(fmt.Sprintf("levels[%d].approver_role", i), "unknown role %q", l.ApproverRole)
		}
		if !l.DepartmentScope.Valid() {
			return newValidationError(fmt.Sprintf("levels[%d].department_scope", i), "unknown scope %q", l.DepartmentScope)
		}
		prev = l.Level
	}
	return nil
}

// =============================================================================
// APPROVALS
// =============================================================================

type ApprovalAction string

const (
	ActionPending  ApprovalAction = "pending"
	ActionApproved ApprovalAction = "approved"
	ActionDenied   ApprovalAction = "denied"
)

// Approval is one level's decision record. Superseded approvals belong to
// an earlier round of the workflow and are kept for history only.
type Approval struct {
	ID         string         `json:"id"`
	Kind       EntityKind     `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Level      int            `json:"approval_level"`
	ApproverID string         `json:"approver_id,omitempty"`
	Action     ApprovalAction `json:"action"`
	Comments   string         `json:"comments,omitempty"`
	DecidedAt  *time.Time     `json:"approved_at,omitempty"`
	Superseded bool           `json:"superseded"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ApprovableEntity is anything routed through the approval chain.
type ApprovableEntity interface {
	Kind() EntityKind
	EntityID() string
	OwnerID() string
	SubjectDepartment() string
	CurrentLevel() int
	RequiredLevels() int
	Levels() []ApprovalLevel
}

type Outcome string

const (
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeCompleted Outcome = "completed"
	OutcomeDenied    Outcome = "denied"
)

// Decision is what Decide did. NextLevel is set when the chain advanced.
type Decision struct {
	Outcome   Outcome
	NextLevel int
	Approval  Approval
}

type DecideInput struct {
	ApproverID string
	Action     ApprovalAction
	Comments   string
}

// =============================================================================
// ENGINE
// =============================================================================

type WorkflowEngine struct {
	store     TxStore
	directory EmployeeDirectory
	audit     AuditLogger
	logger    *zap.Logger
	now       Clock
}

// NewWorkflowEngine builds the engine. A nil directory disables approver
// authorization checks.
func NewWorkflowEngine(store TxStore, directory EmployeeDirectory, audit AuditLogger, logger ...*zap.Logger) *WorkflowEngine {
	return &WorkflowEngine{
		store:     store,
		directory: directory,
		audit:     audit,
		logger:    namedLogger("leave.workflow", logger),
		now:       time.Now,
	}
}

func (e *WorkflowEngine) SetClock(now Clock) { e.now = now }

// SaveWorkflow stores a department's chain, replacing any previous one.
func (e *WorkflowEngine) SaveWorkflow(ctx context.Context, cfg WorkflowConfig, actor string) (WorkflowConfig, error) {
	if cfg.DepartmentID == "" {
		return WorkflowConfig{}, newValidationError("department_id", "is required")
	}
	if !cfg.Kind.Valid() {
		return WorkflowConfig{}, newValidationError("entity_kind", "unknown kind %q", cfg.Kind)
	}
	if cfg.PassSlipType != "" {
		if cfg.Kind != KindPassSlip {
			return WorkflowConfig{}, newValidationError("pass_slip_type", "only applies to pass slip workflows")
		}
		if !cfg.PassSlipType.Valid() {
			return WorkflowConfig{}, newValidationError("pass_slip_type", "unknown type %q", cfg.PassSlipType)
		}
	}
	if err := ValidateLevels(cfg.Levels); err != nil {
		return WorkflowConfig{}, err
	}
	if e.directory != nil {
		dept, err := e.directory.GetDepartment(ctx, cfg.DepartmentID)
		if err != nil {
			return WorkflowConfig{}, fmt.Errorf("get department: %w", err)
		}
		if dept == nil {
			return WorkflowConfig{}, &NotFoundError{Resource: "department", ID: cfg.DepartmentID}
		}
	}

	cfg.UpdatedBy = actor
	cfg.UpdatedAt = e.now().UTC()
	if err := e.store.SaveWorkflowConfig(ctx, cfg); err != nil {
		return WorkflowConfig{}, fmt.Errorf("save workflow: %w", err)
	}

	e.logger.Info("workflow saved",
		zap.String("department_id", cfg.DepartmentID),
		zap.String("kind", string(cfg.Kind)),
		zap.Int("levels", len(cfg.Levels)),
	)
	recordAudit(ctx, e.audit, e.logger, AuditEvent{
		Action:     AuditWorkflowSaved,
		ActorID:    actor,
		EntityKind: "approval_workflow",
		EntityID:   cfg.DepartmentID + "/" + string(cfg.Kind),
		Details:    map[string]any{"levels": cfg.Levels, "pass_slip_type": string(cfg.PassSlipType)},
		At:         cfg.UpdatedAt,
	})
	return cfg, nil
}

// ResolveConfig returns the chain that applies to a new entity. A pass slip
// type specific chain wins over the department's general one, which wins
// over DefaultWorkflow.
func (e *WorkflowEngine) ResolveConfig(ctx context.Context, departmentID string, kind EntityKind, slipType PassSlipType) ([]ApprovalLevel, error) {
	candidates := []PassSlipType{""}
	if slipType != "" {
		candidates = []PassSlipType{slipType, ""}
	}
	for _, st := range candidates {
		cfg, err := e.store.GetWorkflowConfig(ctx, departmentID, kind, st)
		if err != nil {
			return nil, fmt.Errorf("get workflow config: %w", err)
		}
		if cfg != nil && len(cfg.Levels) > 0 {
			return cfg.Levels, nil
		}
	}
	return DefaultWorkflow(), nil
}

// Authorize checks that approverID may decide the entity's current level.
// HR administrators may decide any level.
func (e *WorkflowEngine) Authorize(ctx context.Context, ent ApprovableEntity, approverID string) error {
	if approverID == "" {
		return newValidationError("approver_id", "is required")
	}
	if approverID == ent.OwnerID() {
		return &NotAuthorizedError{ApproverID: approverID, Reason: "cannot decide own request"}
	}
	if e.directory == nil {
		return nil
	}
	lvl, _, ok := levelAt(ent.Levels(), ent.CurrentLevel())
	if !ok {
		return newValidationError("approval_level", "level %d is not part of the workflow", ent.CurrentLevel())
	}

	approver, err := e.directory.GetEmployee(ctx, approverID)
	if err != nil {
		return fmt.Errorf("get approver: %w", err)
	}
	if approver == nil || !approver.Active {
		return &NotAuthorizedError{ApproverID: approverID, Reason: "unknown or inactive employee"}
	}
	if approver.Role == RoleHRAdmin {
		return nil
	}
	if approver.Role != lvl.ApproverRole {
		return &NotAuthorizedError{ApproverID: approverID, Reason: fmt.Sprintf("level %d requires role %s", lvl.Level, lvl.ApproverRole)}
	}

	switch lvl.DepartmentScope {
	case ScopeAny:
		return nil
	case ScopeSame:
		if approver.DepartmentID != ent.SubjectDepartment() {
			return &NotAuthorizedError{ApproverID: approverID, Reason: "approver must be in the requester's department"}
		}
	case ScopeParent:
		dept, err := e.directory.GetDepartment(ctx, ent.SubjectDepartment())
		if err != nil {
			return fmt.Errorf("get department: %w", err)
		}
		if dept == nil || dept.ParentID == "" || approver.DepartmentID != dept.ParentID {
			return &NotAuthorizedError{ApproverID: approverID, Reason: "approver must be in the parent department"}
		}
	}
	return nil
}

// Start opens the pending approval for the entity's first level.
func (e *WorkflowEngine) Start(ctx context.Context, s Store, ent ApprovableEntity) (Approval, error) {
	levels := ent.Levels()
	if len(levels) == 0 {
		return Approval{}, newValidationError("levels", "entity has no workflow")
	}
	return e.open(ctx, s, ent, levels[0].Level)
}

// Decide records a decision on the entity's current level and reports what
// the entity should do next. The caller applies the outcome to the entity
// in the same transaction.
func (e *WorkflowEngine) Decide(ctx context.Context, s Store, ent ApprovableEntity, in DecideInput) (Decision, error) {
	if in.Action != ActionApproved && in.Action != ActionDenied {
		return Decision{}, newValidationError("action", "must be approved or denied")
	}
	levels := ent.Levels()
	lvl, idx, ok := levelAt(levels, ent.CurrentLevel())
	if !ok {
		return Decision{}, newValidationError("approval_level", "level %d is not part of the workflow", ent.CurrentLevel())
	}

	a, err := s.GetLiveApproval(ctx, ent.Kind(), ent.EntityID(), lvl.Level)
	if err != nil {
		return Decision{}, fmt.Errorf("get approval: %w", err)
	}
	if a == nil || a.Action != ActionPending {
		return Decision{}, &StateConflictError{Resource: string(ent.Kind()), ID: ent.EntityID(), Action: "decide level " + fmt.Sprint(lvl.Level)}
	}

	now := e.now().UTC()
	a.ApproverID = in.ApproverID
	a.Action = in.Action
	a.Comments = in.Comments
	a.DecidedAt = &now
	if err := s.DecideApproval(ctx, *a); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return Decision{}, &StateConflictError{Resource: string(ent.Kind()), ID: ent.EntityID(), Action: "decide level " + fmt.Sprint(lvl.Level)}
		}
		return Decision{}, fmt.Errorf("record decision: %w", err)
	}

	if in.Action == ActionDenied && lvl.Required {
		return Decision{Outcome: OutcomeDenied, Approval: *a}, nil
	}
	if idx == len(levels)-1 {
		return Decision{Outcome: OutcomeCompleted, Approval: *a}, nil
	}
	next := levels[idx+1]
	if _, err := e.open(ctx, s, ent, next.Level); err != nil {
		return Decision{}, err
	}
	return Decision{Outcome: OutcomeAdvanced, NextLevel: next.Level, Approval: *a}, nil
}

// Reset supersedes every approval and reopens the first level. The entity
// must already carry its new level chain.
func (e *WorkflowEngine) Reset(ctx context.Context, s Store, ent ApprovableEntity) (Approval, error) {
	if err := e.Abandon(ctx, s, ent); err != nil {
		return Approval{}, err
	}
	return e.Start(ctx, s, ent)
}

// Abandon supersedes every approval of the entity.
func (e *WorkflowEngine) Abandon(ctx context.Context, s Store, ent ApprovableEntity) error {
	if err := s.SupersedeApprovals(ctx, ent.Kind(), ent.EntityID()); err != nil {
		return fmt.Errorf("supersede approvals: %w", err)
	}
	return nil
}

// History returns every approval of an entity, superseded ones included.
func (e *WorkflowEngine) History(ctx context.Context, kind EntityKind, entityID string) ([]Approval, error) {
	as, err := e.store.ListApprovals(ctx, kind, entityID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return as, nil
}

// Pending returns live pending approvals of the given kind, oldest first.
func (e *WorkflowEngine) Pending(ctx context.Context, kind EntityKind) ([]Approval, error) {
	as, err := e.store.ListPendingApprovals(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return as, nil
}

func (e *WorkflowEngine) open(ctx context.Context, s Store, ent ApprovableEntity, level int) (Approval, error) {
	a := Approval{
		ID:        uuid.NewString(),
		Kind:      ent.Kind(),
		EntityID:  ent.EntityID(),
		Level:     level,
		Action:    ActionPending,
		CreatedAt: e.now().UTC(),
	}
	if err := s.InsertApproval(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return Approval{}, &StateConflictError{Resource: string(ent.Kind()), ID: ent.EntityID(), Action: fmt.Sprintf("open level %d", level)}
		}
		return Approval{}, fmt.Errorf("insert approval: %w", err)
	}
	return a, nil
}

func levelAt(levels []ApprovalLevel, level int) (ApprovalLevel, int, bool) {
	for i, l := range levels {
		if l.Level == level {
			return l, i, true
		}
	}
	return ApprovalLevel{}, -1, false
}
