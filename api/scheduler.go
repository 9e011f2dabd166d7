/*
scheduler.go - Automated monthly accrual scheduler

PURPOSE:
  Periodically checks whether the previous calendar month has been
  accrued and, if not, runs the accrual engine for it.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The target period is always the month before "today" in Location
  - Skips periods whose accrual_runs row is already completed
  - Records every run (running, completed, failed) for audit and display
  - The engine itself is idempotent per employee and leave type, so a
    crashed run is simply repeated on the next tick

USAGE:
  scheduler := NewAccrualScheduler(store, engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAccrual endpoint (manual trigger)
  - core/accrual.go: AccrualEngine
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/Kirachon/Monitoring-Tool-sub000/store/sqlite"
	"go.uber.org/zap"
)

// AccrualScheduler credits monthly leave without operator involvement.
type AccrualScheduler struct {
	Store         *sqlite.Store
	Engine        *core.AccrualEngine
	CheckInterval time.Duration
	Enabled       bool
	Location      *time.Location
	Now           core.Clock

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewAccrualScheduler(store *sqlite.Store, engine *core.AccrualEngine, logger *zap.Logger) *AccrualScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccrualScheduler{
		Store:         store,
		Engine:        engine,
		CheckInterval: time.Hour,
		Enabled:       true,
		Location:      time.UTC,
		Now:           time.Now,
		logger:        logger.Named("leave.scheduler"),
	}
}

func (s *AccrualScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("accrual scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker.C, s.stop)

	s.logger.Info("accrual scheduler started", zap.Duration("interval", s.CheckInterval))
}

func (s *AccrualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.logger.Info("accrual scheduler stopped")
	}
}

func (s *AccrualScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-tick:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// DuePeriod is the month the scheduler would accrue right now.
func (s *AccrualScheduler) DuePeriod() core.AccrualPeriod {
	return core.PeriodOf(core.TodayIn(s.Now, s.Location)).Previous()
}

// RunNow accrues the due period unless it is already complete. It reports
// whether a run was attempted.
func (s *AccrualScheduler) RunNow(ctx context.Context) bool {
	period := s.DuePeriod()
	done, err := s.Store.IsAccrualComplete(ctx, period.Key())
	if err != nil {
		s.logger.Error("check accrual run", zap.String("period", period.Key()), zap.Error(err))
		return false
	}
	if done {
		s.logger.Debug("accrual already complete", zap.String("period", period.Key()))
		return false
	}
	if _, _, err := runAccrual(ctx, s.Store, s.Engine, period, s.Now, s.logger); err != nil {
		s.logger.Error("scheduled accrual failed", zap.String("period", period.Key()), zap.Error(err))
	}
	return true
}

// runAccrual executes one period and records it in accrual_runs. Per-pair
// failures mark the run failed but are reported in the result, not as err.
func runAccrual(ctx context.Context, store *sqlite.Store, engine *core.AccrualEngine, period core.AccrualPeriod, now core.Clock, logger *zap.Logger) (core.AccrualResult, sqlite.AccrualRun, error) {
	run := sqlite.AccrualRun{
		PeriodKey: period.Key(),
		Status:    sqlite.AccrualRunRunning,
		StartedAt: now().UTC(),
	}
	if err := store.SaveAccrualRun(ctx, run); err != nil {
		return core.AccrualResult{}, run, fmt.Errorf("save accrual run: %w", err)
	}

	result, err := engine.RunMonthly(ctx, period)
	completed := now().UTC()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = sqlite.AccrualRunFailed
		run.Error = err.Error()
		if saveErr := store.SaveAccrualRun(ctx, run); saveErr != nil {
			logger.Error("save failed accrual run", zap.String("period", run.PeriodKey), zap.Error(saveErr))
		}
		return result, run, err
	}

	run.Status = sqlite.AccrualRunCompleted
	run.Processed, run.Skipped, run.Errors = result.Processed, result.Skipped, result.Errors
	if result.Errors > 0 {
		// failed runs are retried by the scheduler; credited pairs are skipped
		run.Status = sqlite.AccrualRunFailed
		run.Error = fmt.Sprintf("%d pairs failed", result.Errors)
	}
	if err := store.SaveAccrualRun(ctx, run); err != nil {
		return result, run, fmt.Errorf("update accrual run: %w", err)
	}

	logger.Info("accrual run finished",
		zap.String("period", run.PeriodKey),
		zap.Int("processed", run.Processed),
		zap.Int("skipped", run.Skipped),
		zap.Int("errors", run.Errors),
	)
	return result, run, nil
}
