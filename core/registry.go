package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LeaveTypeInput carries the fields of a new leave type.
type LeaveTypeInput struct {
	Code        string           `json:"code" validate:"required,max=20,alphanum"`
	Name        string           `json:"name" validate:"required,max=100"`
	AccrualRate decimal.Decimal  `json:"accrual_rate"`
	MaxBalance  *decimal.Decimal `json:"max_balance,omitempty"`
	Monetizable bool             `json:"monetizable"`
}

// LeaveTypeUpdate changes a leave type. Nil fields are left alone; the code
// cannot be changed.
type LeaveTypeUpdate struct {
	Name            *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	AccrualRate     *decimal.Decimal `json:"accrual_rate,omitempty"`
	MaxBalance      *decimal.Decimal `json:"max_balance,omitempty"`
	ClearMaxBalance bool             `json:"clear_max_balance,omitempty"`
	Monetizable     *bool            `json:"monetizable,omitempty"`
	Active          *bool            `json:"active,omitempty"`
}

// LeaveTypeRegistry is the catalog of leave types. Reads are served from a
// process-local cache filled on demand.
type LeaveTypeRegistry struct {
	store  LeaveTypeStore
	logger *zap.Logger
	now    Clock

	mu    sync.RWMutex
	cache map[string]LeaveType
	group singleflight.Group
}

func NewLeaveTypeRegistry(store LeaveTypeStore, logger ...*zap.Logger) *LeaveTypeRegistry {
	return &LeaveTypeRegistry{
		store:  store,
		logger: namedLogger("leave.registry", logger),
		now:    time.Now,
		cache:  map[string]LeaveType{},
	}
}

// SetClock replaces the registry's time source.
func (r *LeaveTypeRegistry) SetClock(now Clock) { r.now = now }

func (r *LeaveTypeRegistry) Create(ctx context.Context, in LeaveTypeInput) (LeaveType, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if err := ValidateStruct(in); err != nil {
		return LeaveType{}, err
	}
	if err := checkRates(in.AccrualRate, in.MaxBalance); err != nil {
		return LeaveType{}, err
	}

	existing, err := r.store.GetLeaveTypeByCode(ctx, in.Code)
	if err != nil {
		return LeaveType{}, fmt.Errorf("lookup leave type code: %w", err)
	}
	if existing != nil {
		return LeaveType{}, newValidationError("code", "%s already exists", in.Code)
	}

	now := r.now().UTC()
	lt := LeaveType{
		ID:          uuid.NewString(),
		Code:        in.Code,
		Name:        in.Name,
		AccrualRate: RoundDays(in.AccrualRate),
		MaxBalance:  roundPtr(in.MaxBalance),
		Monetizable: in.Monetizable,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.InsertLeaveType(ctx, lt); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return LeaveType{}, newValidationError("code", "%s already exists", in.Code)
		}
		return LeaveType{}, fmt.Errorf("insert leave type: %w", err)
	}
	r.put(lt)

	r.logger.Info("leave type created", zap.String("code", lt.Code), zap.String("id", lt.ID))
	return lt, nil
}

func (r *LeaveTypeRegistry) Update(ctx context.Context, id string, upd LeaveTypeUpdate) (LeaveType, error) {
	if err := ValidateStruct(upd); err != nil {
		return LeaveType{}, err
	}
	lt, err := r.load(ctx, id)
	if err != nil {
		return LeaveType{}, err
	}

	if upd.Name != nil {
		lt.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.AccrualRate != nil {
		lt.AccrualRate = RoundDays(*upd.AccrualRate)
	}
	if upd.ClearMaxBalance {
		lt.MaxBalance = nil
	} else if upd.MaxBalance != nil {
		lt.MaxBalance = roundPtr(upd.MaxBalance)
	}
	if upd.Monetizable != nil {
		lt.Monetizable = *upd.Monetizable
	}
	if upd.Active != nil {
		lt.Active = *upd.Active
	}
	if err := checkRates(lt.AccrualRate, lt.MaxBalance); err != nil {
		return LeaveType{}, err
	}
	lt.UpdatedAt = r.now().UTC()

	save := func(s LeaveTypeStore) error {
		if lt.MaxBalance != nil {
			if err := checkCapAgainstBalances(ctx, s, lt.ID, *lt.MaxBalance); err != nil {
				return err
			}
		}
		if err := s.UpdateLeaveType(ctx, lt); err != nil {
			return fmt.Errorf("update leave type: %w", err)
		}
		return nil
	}
	if tx, ok := r.store.(TxStore); ok {
		err = tx.WithTx(ctx, func(s Store) error { return save(s) })
	} else {
		err = save(r.store)
	}
	if err != nil {
		r.logger.Warn("leave type update rejected", zap.String("id", id), zap.Error(err))
		return LeaveType{}, err
	}
	r.put(lt)
	return lt, nil
}

// checkCapAgainstBalances refuses a cap that an existing balance already
// exceeds. Balances are never clipped retroactively.
func checkCapAgainstBalances(ctx context.Context, s LeaveTypeStore, leaveTypeID string, max decimal.Decimal) error {
	balances, err := s.ListBalancesByType(ctx, leaveTypeID)
	if err != nil {
		return fmt.Errorf("list balances: %w", err)
	}
	for _, b := range balances {
		if b.CurrentBalance.GreaterThan(max) {
			return newValidationError("max_balance", "%s is below the %s balance of employee %s",
				FormatDays(max), FormatDays(b.CurrentBalance), b.EmployeeID)
		}
	}
	return nil
}

// Deactivate hides a leave type from new requests and accrual. Existing
// balances and requests are unaffected.
func (r *LeaveTypeRegistry) Deactivate(ctx context.Context, id string) (LeaveType, error) {
	inactive := false
	return r.Update(ctx, id, LeaveTypeUpdate{Active: &inactive})
}

func (r *LeaveTypeRegistry) Get(ctx context.Context, id string) (LeaveType, error) {
	r.mu.RLock()
	lt, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return lt, nil
	}
	return r.load(ctx, id)
}

func (r *LeaveTypeRegistry) GetByCode(ctx context.Context, code string) (LeaveType, error) {
	lt, err := r.store.GetLeaveTypeByCode(ctx, strings.ToUpper(code))
	if err != nil {
		return LeaveType{}, fmt.Errorf("get leave type by code: %w", err)
	}
	if lt == nil {
		return LeaveType{}, &NotFoundError{Resource: "leave_type", ID: code}
	}
	r.put(*lt)
	return *lt, nil
}

// List returns leave types ordered by code.
func (r *LeaveTypeRegistry) List(ctx context.Context, activeOnly bool) ([]LeaveType, error) {
	all, err := r.store.ListLeaveTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leave types: %w", err)
	}
	out := make([]LeaveType, 0, len(all))
	for _, lt := range all {
		r.put(lt)
		if activeOnly && !lt.Active {
			continue
		}
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Accruing returns the active leave types with a positive accrual rate.
func (r *LeaveTypeRegistry) Accruing(ctx context.Context) ([]LeaveType, error) {
	all, err := r.List(ctx, true)
	if err != nil {
		return nil, err
	}
	var out []LeaveType
	for _, lt := range all {
		if lt.Accrues() {
			out = append(out, lt)
		}
	}
	return out, nil
}

// load reads through to the store. Concurrent misses for the same id share
// one query.
func (r *LeaveTypeRegistry) load(ctx context.Context, id string) (LeaveType, error) {
	v, err, _ := r.group.Do(id, func() (any, error) {
		lt, err := r.store.GetLeaveType(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get leave type: %w", err)
		}
		if lt == nil {
			return nil, &NotFoundError{Resource: "leave_type", ID: id}
		}
		r.put(*lt)
		return *lt, nil
	})
	if err != nil {
		return LeaveType{}, err
	}
	return v.(LeaveType), nil
}

func (r *LeaveTypeRegistry) put(lt LeaveType) {
	r.mu.Lock()
	r.cache[lt.ID] = lt
	r.mu.Unlock()
}

func checkRates(rate decimal.Decimal, max *decimal.Decimal) error {
	if rate.IsNegative() {
		return newValidationError("accrual_rate", "must not be negative")
	}
	if max != nil && max.IsNegative() {
		return newValidationError("max_balance", "must not be negative")
	}
	return nil
}

func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := RoundDays(*d)
	return &v
}
