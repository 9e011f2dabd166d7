package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
)

// =============================================================================
// APPROVALS (core.ApprovalStore)
// =============================================================================

const approvalColumns = `id, entity_kind, entity_id, approval_level, approver_id, action, comments,
	approved_at, superseded, created_at`

func (c *conn) InsertApproval(ctx context.Context, a core.Approval) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO approvals (`+approvalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Kind), a.EntityID, a.Level, nullString(a.ApproverID), string(a.Action),
		nullString(a.Comments), nullTime(a.DecidedAt), boolInt(a.Superseded), formatTime(a.CreatedAt),
	)
	return mapError(err)
}

func (c *conn) GetLiveApproval(ctx context.Context, kind core.EntityKind, entityID string, level int) (*core.Approval, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE entity_kind = ? AND entity_id = ? AND approval_level = ? AND superseded = 0
		ORDER BY rowid DESC LIMIT 1`,
		string(kind), entityID, level,
	)
	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// DecideApproval only lands on a row that is still pending and live.
func (c *conn) DecideApproval(ctx context.Context, a core.Approval) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE approvals SET approver_id = ?, action = ?, comments = ?, approved_at = ?
		WHERE id = ? AND action = 'pending' AND superseded = 0`,
		nullString(a.ApproverID), string(a.Action), nullString(a.Comments), nullTime(a.DecidedAt), a.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return rowsAffectedOrConflict(res)
}

func (c *conn) SupersedeApprovals(ctx context.Context, kind core.EntityKind, entityID string) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE approvals SET superseded = 1
		WHERE entity_kind = ? AND entity_id = ? AND superseded = 0`,
		string(kind), entityID,
	)
	return mapError(err)
}

func (c *conn) ListApprovals(ctx context.Context, kind core.EntityKind, entityID string) ([]core.Approval, error) {
	return c.queryApprovals(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY rowid`,
		string(kind), entityID,
	)
}

func (c *conn) ListPendingApprovals(ctx context.Context, kind core.EntityKind) ([]core.Approval, error) {
	return c.queryApprovals(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE entity_kind = ? AND action = 'pending' AND superseded = 0
		ORDER BY rowid`,
		string(kind),
	)
}

func (c *conn) queryApprovals(ctx context.Context, query string, args ...any) ([]core.Approval, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanApproval(row scanner) (*core.Approval, error) {
	var (
		a                           core.Approval
		kind, action, createdAt     string
		approver, comments, decided sql.NullString
		superseded                  int
	)
	if err := row.Scan(&a.ID, &kind, &a.EntityID, &a.Level, &approver, &action, &comments,
		&decided, &superseded, &createdAt); err != nil {
		return nil, err
	}
	a.Kind = core.EntityKind(kind)
	a.Action = core.ApprovalAction(action)
	a.ApproverID = approver.String
	a.Comments = comments.String
	a.DecidedAt = parseNullTime(decided)
	a.Superseded = superseded == 1
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// =============================================================================
// WORKFLOW CONFIGURATION
// =============================================================================

func (c *conn) SaveWorkflowConfig(ctx context.Context, cfg core.WorkflowConfig) error {
	levels, err := json.Marshal(cfg.Levels)
	if err != nil {
		return fmt.Errorf("encode levels: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO approval_workflows (department_id, entity_kind, pass_slip_type, levels_json, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(department_id, entity_kind, pass_slip_type) DO UPDATE SET
			levels_json = excluded.levels_json,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		cfg.DepartmentID, string(cfg.Kind), string(cfg.PassSlipType), string(levels), cfg.UpdatedBy, formatTime(cfg.UpdatedAt),
	)
	return mapError(err)
}

func (c *conn) GetWorkflowConfig(ctx context.Context, departmentID string, kind core.EntityKind, passSlipType core.PassSlipType) (*core.WorkflowConfig, error) {
	var (
		cfg               core.WorkflowConfig
		levels, updatedAt string
		slipType          string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT department_id, pass_slip_type, levels_json, updated_by, updated_at
		FROM approval_workflows
		WHERE department_id = ? AND entity_kind = ? AND pass_slip_type = ?`,
		departmentID, string(kind), string(passSlipType),
	).Scan(&cfg.DepartmentID, &slipType, &levels, &cfg.UpdatedBy, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	if err := json.Unmarshal([]byte(levels), &cfg.Levels); err != nil {
		return nil, fmt.Errorf("decode levels: %w", err)
	}
	cfg.Kind = kind
	cfg.PassSlipType = core.PassSlipType(slipType)
	cfg.UpdatedAt = parseTime(updatedAt)
	return &cfg, nil
}
