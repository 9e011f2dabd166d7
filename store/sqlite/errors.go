package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/mattn/go-sqlite3"
)

// mapError translates driver errors into core sentinels. Errors that are
// already domain errors pass through untouched.
func mapError(err error) error {
	if err == nil || errors.Is(err, core.ErrConcurrency) || errors.Is(err, core.ErrDuplicateKey) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", core.ErrConcurrency, err)
		case sqlite3.ErrConstraint:
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return fmt.Errorf("%w: %w", core.ErrDuplicateKey, err)
			}
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrConcurrency, err)
	}
	return err
}
