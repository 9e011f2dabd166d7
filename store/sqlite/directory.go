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
// EMPLOYEE DIRECTORY (core.EmployeeDirectory)
// =============================================================================

func (s *Store) SaveDepartment(ctx context.Context, d core.Department) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, name, parent_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id`,
		d.ID, d.Name, nullString(d.ParentID), formatTime(time.Now()),
	)
	return mapError(err)
}

func (s *Store) GetDepartment(ctx context.Context, id string) (*core.Department, error) {
	var (
		d      core.Department
		parent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, parent_id FROM departments WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	d.ParentID = parent.String
	return &d, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]core.Department, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent_id FROM departments ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.Department
	for rows.Next() {
		var (
			d      core.Department
			parent sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &parent); err != nil {
			return nil, err
		}
		d.ParentID = parent.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) SaveEmployee(ctx context.Context, e core.Employee) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, department_id, employment_status, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department_id = excluded.department_id,
			employment_status = excluded.employment_status,
			role = excluded.role,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		e.ID, e.Name, e.DepartmentID, string(e.EmploymentStatus), string(e.Role), boolInt(e.Active), now, now,
	)
	return mapError(err)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*core.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, department_id, employment_status, role, active
		FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, f core.EmployeeFilter) ([]core.Employee, error) {
	var (
		where []string
		args  []any
	)
	if f.DepartmentID != "" {
		where = append(where, "department_id = ?")
		args = append(args, f.DepartmentID)
	}
	if f.Status != "" {
		where = append(where, "employment_status = ?")
		args = append(args, string(f.Status))
	}
	if f.ActiveOnly {
		where = append(where, "active = 1")
	}
	query := `SELECT id, name, department_id, employment_status, role, active FROM employees`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEmployee(row scanner) (*core.Employee, error) {
	var (
		e            core.Employee
		status, role string
		active       int
	)
	if err := row.Scan(&e.ID, &e.Name, &e.DepartmentID, &status, &role, &active); err != nil {
		return nil, err
	}
	e.EmploymentStatus = core.EmploymentStatus(status)
	e.Role = core.ApproverRole(role)
	e.Active = active == 1
	return &e, nil
}

// =============================================================================
// HOLIDAYS (core.HolidaySource)
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h core.Holiday) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, holiday_date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			holiday_date = excluded.holiday_date,
			name = excluded.name,
			recurring = excluded.recurring`,
		h.ID, formatDate(h.Date), h.Name, boolInt(h.Recurring), formatTime(time.Now()),
	)
	return mapError(err)
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	if err := rowsAffectedOrConflict(res); err != nil {
		return &core.NotFoundError{Resource: "holiday", ID: id}
	}
	return nil
}

// Holidays returns the one-off holidays inside [from, to] and every
// recurring holiday.
func (s *Store) Holidays(ctx context.Context, from, to time.Time) ([]core.Holiday, error) {
	return s.queryHolidays(ctx, `
		SELECT id, holiday_date, name, recurring FROM holidays
		WHERE recurring = 1 OR holiday_date BETWEEN ? AND ?
		ORDER BY holiday_date`,
		formatDate(from), formatDate(to),
	)
}

func (s *Store) ListHolidays(ctx context.Context) ([]core.Holiday, error) {
	return s.queryHolidays(ctx, `SELECT id, holiday_date, name, recurring FROM holidays ORDER BY holiday_date`)
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]core.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.Holiday
	for rows.Next() {
		var (
			h         core.Holiday
			date      string
			recurring int
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &recurring); err != nil {
			return nil, err
		}
		h.Date = parseDate(date)
		h.Recurring = recurring == 1
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG (core.AuditLogger)
// =============================================================================

func (s *Store) Log(ctx context.Context, ev core.AuditEvent) error {
	var details sql.NullString
	if len(ev.Details) > 0 {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (action, actor_id, entity_kind, entity_id, employee_id, details_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Action), ev.ActorID, ev.EntityKind, ev.EntityID, nullString(ev.EmployeeID), details, formatTime(ev.At),
	)
	return mapError(err)
}

// AuditTrail returns the events recorded for one entity, oldest first.
func (s *Store) AuditTrail(ctx context.Context, entityKind, entityID string) ([]core.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, actor_id, entity_kind, entity_id, employee_id, details_json, created_at
		FROM audit_logs WHERE entity_kind = ? AND entity_id = ?
		ORDER BY id`,
		entityKind, entityID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []core.AuditEvent
	for rows.Next() {
		var (
			ev                core.AuditEvent
			action, createdAt string
			employee, details sql.NullString
		)
		if err := rows.Scan(&action, &ev.ActorID, &ev.EntityKind, &ev.EntityID, &employee, &details, &createdAt); err != nil {
			return nil, err
		}
		ev.Action = core.AuditAction(action)
		ev.EmployeeID = employee.String
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &ev.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		ev.At = parseTime(createdAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}
