package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
)

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const leaveRequestColumns = `id, reference_no, employee_id, department_id, leave_type_id,
	date_from, date_to, half_day, num_days, reason, status, current_level, workflow_json,
	denial_reason, approved_by, approved_at, cancelled_by, cancelled_at, cancellation_reason,
	created_by, created_at, updated_at`

func (c *conn) InsertLeaveRequest(ctx context.Context, r core.LeaveRequest) error {
	levels, err := json.Marshal(r.WorkflowLevels)
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO leave_requests (`+leaveRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReferenceNo, r.EmployeeID, r.DepartmentID, r.LeaveTypeID,
		formatDate(r.DateFrom), formatDate(r.DateTo), boolInt(r.HalfDay), core.FormatDays(r.NumDays),
		r.Reason, string(r.Status), r.Level, string(levels),
		nullString(r.DenialReason), nullString(r.ApprovedBy), nullTime(r.ApprovedAt),
		nullString(r.CancelledBy), nullTime(r.CancelledAt), nullString(r.CancellationReason),
		r.CreatedBy, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return mapError(err)
}

func (c *conn) GetLeaveRequest(ctx context.Context, id string) (*core.LeaveRequest, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+leaveRequestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanLeaveRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (c *conn) UpdateLeaveRequest(ctx context.Context, r core.LeaveRequest, expected core.RequestStatus) error {
	levels, err := json.Marshal(r.WorkflowLevels)
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_requests SET
			leave_type_id = ?, date_from = ?, date_to = ?, half_day = ?, num_days = ?, reason = ?,
			status = ?, current_level = ?, workflow_json = ?, denial_reason = ?,
			approved_by = ?, approved_at = ?, cancelled_by = ?, cancelled_at = ?,
			cancellation_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		r.LeaveTypeID, formatDate(r.DateFrom), formatDate(r.DateTo), boolInt(r.HalfDay),
		core.FormatDays(r.NumDays), r.Reason,
		string(r.Status), r.Level, string(levels), nullString(r.DenialReason),
		nullString(r.ApprovedBy), nullTime(r.ApprovedAt), nullString(r.CancelledBy), nullTime(r.CancelledAt),
		nullString(r.CancellationReason), formatTime(r.UpdatedAt),
		r.ID, string(expected),
	)
	if err != nil {
		return mapError(err)
	}
	return rowsAffectedOrConflict(res)
}

func (c *conn) ListLeaveRequests(ctx context.Context, f core.LeaveRequestFilter) ([]core.LeaveRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.DepartmentID != "" {
		where = append(where, "department_id = ?")
		args = append(args, f.DepartmentID)
	}
	if clause, statusArgs := statusIn(f.Statuses); clause != "" {
		where = append(where, clause)
		args = append(args, statusArgs...)
	}
	// Overlap: NOT (date_to < from OR date_from > to). ISO dates compare as text.
	if f.From != nil {
		where = append(where, "date_to >= ?")
		args = append(args, formatDate(*f.From))
	}
	if f.To != nil {
		where = append(where, "date_from <= ?")
		args = append(args, formatDate(*f.To))
	}

	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date_from, created_at"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.LeaveRequest
	for rows.Next() {
		r, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountEmployeesOnLeave counts active members of the department with a live
// request overlapping [from, to].
func (c *conn) CountEmployeesOnLeave(ctx context.Context, departmentID string, from, to time.Time) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT r.employee_id) FROM leave_requests r
		JOIN employees e ON e.id = r.employee_id AND e.active = 1 AND e.department_id = ?
		WHERE r.department_id = ?
		  AND r.status IN ('pending', 'approved')
		  AND NOT (r.date_to < ? OR r.date_from > ?)`,
		departmentID, departmentID, formatDate(from), formatDate(to),
	).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func scanLeaveRequest(row scanner) (*core.LeaveRequest, error) {
	var (
		r                                       core.LeaveRequest
		dateFrom, dateTo, status, levels        string
		createdAt, updatedAt                    string
		halfDay                                 int
		denial, approvedBy, cancelledBy, reason sql.NullString
		approvedAt, cancelledAt                 sql.NullString
	)
	err := row.Scan(&r.ID, &r.ReferenceNo, &r.EmployeeID, &r.DepartmentID, &r.LeaveTypeID,
		&dateFrom, &dateTo, &halfDay, &r.NumDays, &r.Reason, &status, &r.Level, &levels,
		&denial, &approvedBy, &approvedAt, &cancelledBy, &cancelledAt, &reason,
		&r.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(levels), &r.WorkflowLevels); err != nil {
		return nil, fmt.Errorf("decode workflow of %s: %w", r.ID, err)
	}
	r.DateFrom = parseDate(dateFrom)
	r.DateTo = parseDate(dateTo)
	r.HalfDay = halfDay == 1
	r.Status = core.RequestStatus(status)
	r.DenialReason = denial.String
	r.ApprovedBy = approvedBy.String
	r.ApprovedAt = parseNullTime(approvedAt)
	r.CancelledBy = cancelledBy.String
	r.CancelledAt = parseNullTime(cancelledAt)
	r.CancellationReason = reason.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// =============================================================================
// PASS SLIPS
// =============================================================================

const passSlipColumns = `id, reference_no, employee_id, department_id, slip_type, slip_date,
	time_out, expected_return, destination, purpose, status, current_level, workflow_json,
	denial_reason, approved_by, approved_at, cancelled_by, cancelled_at, cancellation_reason,
	created_at, updated_at`

func (c *conn) InsertPassSlip(ctx context.Context, p core.PassSlip) error {
	levels, err := json.Marshal(p.WorkflowLevels)
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO pass_slips (`+passSlipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ReferenceNo, p.EmployeeID, p.DepartmentID, string(p.SlipType), formatDate(p.SlipDate),
		p.TimeOut, p.ExpectedReturn, p.Destination, p.Purpose, string(p.Status), p.Level, string(levels),
		nullString(p.DenialReason), nullString(p.ApprovedBy), nullTime(p.ApprovedAt),
		nullString(p.CancelledBy), nullTime(p.CancelledAt), nullString(p.CancellationReason),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	return mapError(err)
}

func (c *conn) GetPassSlip(ctx context.Context, id string) (*core.PassSlip, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+passSlipColumns+` FROM pass_slips WHERE id = ?`, id)
	p, err := scanPassSlip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (c *conn) UpdatePassSlip(ctx context.Context, p core.PassSlip, expected core.RequestStatus) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE pass_slips SET
			status = ?, current_level = ?, denial_reason = ?, approved_by = ?, approved_at = ?,
			cancelled_by = ?, cancelled_at = ?, cancellation_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(p.Status), p.Level, nullString(p.DenialReason), nullString(p.ApprovedBy), nullTime(p.ApprovedAt),
		nullString(p.CancelledBy), nullTime(p.CancelledAt), nullString(p.CancellationReason), formatTime(p.UpdatedAt),
		p.ID, string(expected),
	)
	if err != nil {
		return mapError(err)
	}
	return rowsAffectedOrConflict(res)
}

func (c *conn) ListPassSlips(ctx context.Context, f core.PassSlipFilter) ([]core.PassSlip, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.DepartmentID != "" {
		where = append(where, "department_id = ?")
		args = append(args, f.DepartmentID)
	}
	if clause, statusArgs := statusIn(f.Statuses); clause != "" {
		where = append(where, clause)
		args = append(args, statusArgs...)
	}
	if f.Date != nil {
		where = append(where, "slip_date = ?")
		args = append(args, formatDate(*f.Date))
	}

	query := `SELECT ` + passSlipColumns + ` FROM pass_slips`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY slip_date, time_out"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.PassSlip
	for rows.Next() {
		p, err := scanPassSlip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPassSlip(row scanner) (*core.PassSlip, error) {
	var (
		p                                       core.PassSlip
		slipType, slipDate, status, levels      string
		createdAt, updatedAt                    string
		denial, approvedBy, cancelledBy, reason sql.NullString
		approvedAt, cancelledAt                 sql.NullString
	)
	err := row.Scan(&p.ID, &p.ReferenceNo, &p.EmployeeID, &p.DepartmentID, &slipType, &slipDate,
		&p.TimeOut, &p.ExpectedReturn, &p.Destination, &p.Purpose, &status, &p.Level, &levels,
		&denial, &approvedBy, &approvedAt, &cancelledBy, &cancelledAt, &reason,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(levels), &p.WorkflowLevels); err != nil {
		return nil, fmt.Errorf("decode workflow of %s: %w", p.ID, err)
	}
	p.SlipType = core.PassSlipType(slipType)
	p.SlipDate = parseDate(slipDate)
	p.Status = core.RequestStatus(status)
	p.DenialReason = denial.String
	p.ApprovedBy = approvedBy.String
	p.ApprovedAt = parseNullTime(approvedAt)
	p.CancelledBy = cancelledBy.String
	p.CancelledAt = parseNullTime(cancelledAt)
	p.CancellationReason = reason.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// =============================================================================
// REFERENCE NUMBERS
// =============================================================================

func (c *conn) NextSequence(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := c.q.QueryRowContext(ctx, `
		INSERT INTO reference_counters (prefix, value) VALUES (?, 1)
		ON CONFLICT(prefix) DO UPDATE SET value = value + 1
		RETURNING value`,
		prefix,
	).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func statusIn(statuses []core.RequestStatus) (string, []any) {
	if len(statuses) == 0 {
		return "", nil
	}
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args[i] = string(s)
	}
	return "status IN (" + strings.Join(marks, ", ") + ")", args
}
