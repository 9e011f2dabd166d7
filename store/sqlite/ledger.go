package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPES (core.LeaveTypeStore)
// =============================================================================

const leaveTypeColumns = `id, code, name, accrual_rate, max_balance, monetizable, active, created_at, updated_at`

func (c *conn) InsertLeaveType(ctx context.Context, lt core.LeaveType) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_types (`+leaveTypeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lt.ID, lt.Code, lt.Name, core.FormatDays(lt.AccrualRate), nullDays(lt.MaxBalance),
		boolInt(lt.Monetizable), boolInt(lt.Active), formatTime(lt.CreatedAt), formatTime(lt.UpdatedAt),
	)
	return mapError(err)
}

// UpdateLeaveType writes every mutable column. The code is never updated.
func (c *conn) UpdateLeaveType(ctx context.Context, lt core.LeaveType) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_types
		SET name = ?, accrual_rate = ?, max_balance = ?, monetizable = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		lt.Name, core.FormatDays(lt.AccrualRate), nullDays(lt.MaxBalance),
		boolInt(lt.Monetizable), boolInt(lt.Active), formatTime(lt.UpdatedAt), lt.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return rowsAffectedOrConflict(res)
}

func (c *conn) GetLeaveType(ctx context.Context, id string) (*core.LeaveType, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE id = ?`, id)
	return scanLeaveType(row)
}

func (c *conn) GetLeaveTypeByCode(ctx context.Context, code string) (*core.LeaveType, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE code = ?`, code)
	return scanLeaveType(row)
}

func (c *conn) ListLeaveTypes(ctx context.Context) ([]core.LeaveType, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+leaveTypeColumns+` FROM leave_types ORDER BY code`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.LeaveType
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *lt)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLeaveType(row scanner) (*core.LeaveType, error) {
	var (
		lt                   core.LeaveType
		maxBalance           decimal.NullDecimal
		monetizable, active  int
		createdAt, updatedAt string
	)
	err := row.Scan(&lt.ID, &lt.Code, &lt.Name, &lt.AccrualRate, &maxBalance,
		&monetizable, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	if maxBalance.Valid {
		m := maxBalance.Decimal
		lt.MaxBalance = &m
	}
	lt.Monetizable = monetizable == 1
	lt.Active = active == 1
	lt.CreatedAt = parseTime(createdAt)
	lt.UpdatedAt = parseTime(updatedAt)
	return &lt, nil
}

// =============================================================================
// BALANCES AND LEDGER ENTRIES (core.BalanceStore)
// =============================================================================

func (c *conn) InsertBalance(ctx context.Context, b core.LeaveBalance) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_balances (employee_id, leave_type_id, current_balance, updated_at)
		VALUES (?, ?, ?, ?)`,
		b.EmployeeID, b.LeaveTypeID, core.FormatDays(b.CurrentBalance), formatTime(b.UpdatedAt),
	)
	return mapError(err)
}

func (c *conn) GetBalance(ctx context.Context, employeeID, leaveTypeID string) (*core.LeaveBalance, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT employee_id, leave_type_id, current_balance, updated_at
		FROM leave_balances WHERE employee_id = ? AND leave_type_id = ?`,
		employeeID, leaveTypeID,
	)
	return scanBalance(row)
}

// LockBalance takes the write lock with a no-op update before reading, the
// SQLite counterpart of SELECT ... FOR UPDATE.
func (c *conn) LockBalance(ctx context.Context, employeeID, leaveTypeID string) (*core.LeaveBalance, error) {
	_, err := c.q.ExecContext(ctx, `
		UPDATE leave_balances SET current_balance = current_balance
		WHERE employee_id = ? AND leave_type_id = ?`,
		employeeID, leaveTypeID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return c.GetBalance(ctx, employeeID, leaveTypeID)
}

func (c *conn) UpdateBalance(ctx context.Context, b core.LeaveBalance) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_balances SET current_balance = ?, updated_at = ?
		WHERE employee_id = ? AND leave_type_id = ?`,
		core.FormatDays(b.CurrentBalance), formatTime(b.UpdatedAt), b.EmployeeID, b.LeaveTypeID,
	)
	if err != nil {
		return mapError(err)
	}
	return rowsAffectedOrConflict(res)
}

func (c *conn) ListBalances(ctx context.Context, employeeID string) ([]core.LeaveBalance, error) {
	return c.queryBalances(ctx, `
		SELECT employee_id, leave_type_id, current_balance, updated_at
		FROM leave_balances WHERE employee_id = ? ORDER BY leave_type_id`,
		employeeID,
	)
}

func (c *conn) ListBalancesByType(ctx context.Context, leaveTypeID string) ([]core.LeaveBalance, error) {
	return c.queryBalances(ctx, `
		SELECT employee_id, leave_type_id, current_balance, updated_at
		FROM leave_balances WHERE leave_type_id = ? ORDER BY employee_id`,
		leaveTypeID,
	)
}

func (c *conn) queryBalances(ctx context.Context, query string, args ...any) ([]core.LeaveBalance, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.LeaveBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBalance(row scanner) (*core.LeaveBalance, error) {
	var (
		b         core.LeaveBalance
		updatedAt string
	)
	err := row.Scan(&b.EmployeeID, &b.LeaveTypeID, &b.CurrentBalance, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

func (c *conn) AppendCredit(ctx context.Context, cr core.LeaveCredit) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_credits (id, employee_id, leave_type_id, amount, transaction_type,
			reason, reference_id, period_key, balance_after, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cr.ID, cr.EmployeeID, cr.LeaveTypeID, core.FormatDays(cr.Amount), string(cr.Type),
		cr.Reason, nullString(cr.ReferenceID), nullString(cr.PeriodKey),
		core.FormatDays(cr.BalanceAfter), formatTime(cr.CreatedAt), cr.CreatedBy,
	)
	return mapError(err)
}

func (c *conn) ListCredits(ctx context.Context, employeeID, leaveTypeID string) ([]core.LeaveCredit, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT seq, id, employee_id, leave_type_id, amount, transaction_type, reason,
			reference_id, period_key, balance_after, created_at, created_by
		FROM leave_credits
		WHERE employee_id = ? AND leave_type_id = ?
		ORDER BY seq`,
		employeeID, leaveTypeID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.LeaveCredit
	for rows.Next() {
		var (
			cr                   core.LeaveCredit
			txType, createdAt    string
			reference, periodKey sql.NullString
		)
		if err := rows.Scan(&cr.Sequence, &cr.ID, &cr.EmployeeID, &cr.LeaveTypeID, &cr.Amount,
			&txType, &cr.Reason, &reference, &periodKey, &cr.BalanceAfter, &createdAt, &cr.CreatedBy); err != nil {
			return nil, err
		}
		cr.Type = core.CreditType(txType)
		cr.ReferenceID = reference.String
		cr.PeriodKey = periodKey.String
		cr.CreatedAt = parseTime(createdAt)
		out = append(out, cr)
	}
	return out, rows.Err()
}

func nullDays(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: core.FormatDays(*d), Valid: true}
}
