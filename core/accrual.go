package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AccrualPeriod is a calendar month.
type AccrualPeriod struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) AccrualPeriod {
	return AccrualPeriod{Year: t.Year(), Month: t.Month()}
}

// Previous returns the month before p.
func (p AccrualPeriod) Previous() AccrualPeriod {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return PeriodOf(t)
}

// Label renders the period as "January 2026".
func (p AccrualPeriod) Label() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// Key renders the period as "2026-01"; it is stored on accrual entries.
func (p AccrualPeriod) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p AccrualPeriod) Validate() error {
	if p.Year < 1900 || p.Year > 9999 {
		return newValidationError("year", "out of range")
	}
	if p.Month < time.January || p.Month > time.December {
		return newValidationError("month", "must be between 1 and 12")
	}
	return nil
}

// AccrualPair is one (employee, leave type) combination to credit.
type AccrualPair struct {
	EmployeeID string
	LeaveType  LeaveType
}

type AccrualFailure struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	Error       string `json:"error"`
}

// AccrualResult summarizes a batch. Skipped counts pairs already credited
// for the period.
type AccrualResult struct {
	Period    AccrualPeriod    `json:"period"`
	Processed int              `json:"processed"`
	Skipped   int              `json:"skipped"`
	Errors    int              `json:"errors"`
	Failures  []AccrualFailure `json:"failures,omitempty"`
}

// AccrualEngine posts the monthly leave credits.
type AccrualEngine struct {
	ledger    *BalanceLedger
	registry  *LeaveTypeRegistry
	directory EmployeeDirectory
	logger    *zap.Logger
}

func NewAccrualEngine(ledger *BalanceLedger, registry *LeaveTypeRegistry, directory EmployeeDirectory, logger ...*zap.Logger) *AccrualEngine {
	return &AccrualEngine{
		ledger:    ledger,
		registry:  registry,
		directory: directory,
		logger:    namedLogger("leave.accrual", logger),
	}
}

// EligiblePairs crosses active regular employees with the accruing leave
// types.
func (a *AccrualEngine) EligiblePairs(ctx context.Context) ([]AccrualPair, error) {
	employees, err := a.directory.ListEmployees(ctx, EmployeeFilter{Status: EmploymentRegular, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	types, err := a.registry.Accruing(ctx)
	if err != nil {
		return nil, err
	}
	pairs := make([]AccrualPair, 0, len(employees)*len(types))
	for _, e := range employees {
		for _, lt := range types {
			pairs = append(pairs, AccrualPair{EmployeeID: e.ID, LeaveType: lt})
		}
	}
	return pairs, nil
}

// Run credits every pair with its type's accrual rate, one transaction per
// pair. Failures are counted and logged; they never stop the batch.
func (a *AccrualEngine) Run(ctx context.Context, period AccrualPeriod, pairs []AccrualPair) AccrualResult {
	res := AccrualResult{Period: period}
	reason := "Monthly Accrual - " + period.Label()

	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			for _, rest := range pairs[i:] {
				res.Errors++
				res.Failures = append(res.Failures, AccrualFailure{EmployeeID: rest.EmployeeID, LeaveTypeID: rest.LeaveType.ID, Error: err.Error()})
			}
			break
		}
		_, err := a.ledger.Credit(ctx, Posting{
			EmployeeID:  p.EmployeeID,
			LeaveTypeID: p.LeaveType.ID,
			Amount:      p.LeaveType.AccrualRate,
			Type:        CreditAccrual,
			Reason:      reason,
			PeriodKey:   period.Key(),
			Actor:       SystemActor,
		})
		switch {
		case err == nil:
			res.Processed++
		case errors.Is(err, ErrAlreadyAccrued):
			res.Skipped++
		default:
			res.Errors++
			res.Failures = append(res.Failures, AccrualFailure{EmployeeID: p.EmployeeID, LeaveTypeID: p.LeaveType.ID, Error: err.Error()})
			a.logger.Warn("accrual failed",
				zap.String("employee_id", p.EmployeeID),
				zap.String("leave_type_id", p.LeaveType.ID),
				zap.String("period", period.Key()),
				zap.Error(err),
			)
		}
	}

	a.logger.Info("accrual run finished",
		zap.String("period", period.Key()),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
	)
	return res
}

// RunMonthly accrues the period for every eligible pair.
func (a *AccrualEngine) RunMonthly(ctx context.Context, period AccrualPeriod) (AccrualResult, error) {
	if err := period.Validate(); err != nil {
		return AccrualResult{}, err
	}
	pairs, err := a.EligiblePairs(ctx)
	if err != nil {
		return AccrualResult{}, err
	}
	return a.Run(ctx, period, pairs), nil
}
