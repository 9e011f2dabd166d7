package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultConflictThreshold is the share of a department (in percent) that
// may be on leave at once before new requests get flagged.
const DefaultConflictThreshold = 50

// ConflictReport is advisory; a conflict never blocks a request.
type ConflictReport struct {
	DepartmentID     string          `json:"department_id"`
	DateFrom         time.Time       `json:"date_from"`
	DateTo           time.Time       `json:"date_to"`
	TotalEmployees   int             `json:"total_employees"`
	EmployeesOnLeave int             `json:"employees_on_leave"`
	Percentage       decimal.Decimal `json:"percentage"`
	HasConflict      bool            `json:"has_conflict"`
}

// ConflictDetector measures how much of a department is already on leave
// in a date range.
type ConflictDetector struct {
	store     RequestStore
	directory EmployeeDirectory
	threshold decimal.Decimal
}

// NewConflictDetector builds a detector. A non-positive threshold falls
// back to DefaultConflictThreshold.
func NewConflictDetector(store RequestStore, directory EmployeeDirectory, thresholdPercent int) *ConflictDetector {
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultConflictThreshold
	}
	return &ConflictDetector{store: store, directory: directory, threshold: decimal.NewFromInt(int64(thresholdPercent))}
}

// CheckOverlap counts distinct employees of the department with a pending
// or approved request overlapping [from, to].
func (d *ConflictDetector) CheckOverlap(ctx context.Context, departmentID string, from, to time.Time) (ConflictReport, error) {
	from, to = DateOf(from), DateOf(to)
	if to.Before(from) {
		return ConflictReport{}, newValidationError("date_to", "must not be before date_from")
	}

	staff, err := d.directory.ListEmployees(ctx, EmployeeFilter{DepartmentID: departmentID, ActiveOnly: true})
	if err != nil {
		return ConflictReport{}, fmt.Errorf("list department employees: %w", err)
	}
	onLeave, err := d.store.CountEmployeesOnLeave(ctx, departmentID, from, to)
	if err != nil {
		return ConflictReport{}, fmt.Errorf("count employees on leave: %w", err)
	}

	r := ConflictReport{
		DepartmentID:     departmentID,
		DateFrom:         from,
		DateTo:           to,
		TotalEmployees:   len(staff),
		EmployeesOnLeave: onLeave,
		Percentage:       decimal.Zero,
	}
	if r.TotalEmployees > 0 {
		r.Percentage = decimal.NewFromInt(int64(onLeave)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(r.TotalEmployees))).
			Round(2)
		r.HasConflict = r.Percentage.GreaterThanOrEqual(d.threshold)
	}
	return r, nil
}
