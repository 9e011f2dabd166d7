package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// DATES - Calendar days, no time of day
// =============================================================================

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

// DateOf truncates t to its calendar date in t's own location and returns
// that date at midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TodayIn returns the current calendar date as observed in loc.
func TodayIn(now Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now().In(loc))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, newValidationError(field, "must be a date in YYYY-MM-DD form")
	}
	return t, nil
}

// DaysBetween returns the whole calendar days from `from` to `to`.
// Negative when `to` is earlier.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// IsWeekend reports Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// RangesOverlap reports whether the inclusive date ranges [aFrom, aTo] and
// [bFrom, bTo] share at least one day.
func RangesOverlap(aFrom, aTo, bFrom, bTo time.Time) bool {
	return !DateOf(aTo).Before(DateOf(bFrom)) && !DateOf(aFrom).After(DateOf(bTo))
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a non-working day. Recurring holidays repeat on the same
// month and day every year.
type Holiday struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Name      string    `json:"name"`
	Recurring bool      `json:"recurring"`
}

// HolidaySource supplies the holidays relevant to a date range. Recurring
// holidays may be returned with any year.
type HolidaySource interface {
	Holidays(ctx context.Context, from, to time.Time) ([]Holiday, error)
}

// HolidayCalendar counts working days.
type HolidayCalendar interface {
	// WorkingDaysBetween counts days in [from, to] that are neither weekend
	// days nor holidays.
	WorkingDaysBetween(ctx context.Context, from, to time.Time) (int, error)
}

// WorkdayCalendar is a HolidayCalendar backed by a HolidaySource.
// A nil source means weekends are the only non-working days.
type WorkdayCalendar struct {
	source HolidaySource
}

func NewWorkdayCalendar(source HolidaySource) *WorkdayCalendar {
	return &WorkdayCalendar{source: source}
}

func (c *WorkdayCalendar) WorkingDaysBetween(ctx context.Context, from, to time.Time) (int, error) {
	from, to = DateOf(from), DateOf(to)
	if to.Before(from) {
		return 0, newValidationError("date_to", "must not be before date_from")
	}

	closed := map[string]bool{}
	if c.source != nil {
		holidays, err := c.source.Holidays(ctx, from, to)
		if err != nil {
			return 0, fmt.Errorf("load holidays: %w", err)
		}
		for _, h := range holidays {
			if !h.Recurring {
				closed[DateOf(h.Date).Format(DateLayout)] = true
				continue
			}
			for y := from.Year(); y <= to.Year(); y++ {
				d := time.Date(y, h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC)
				if d.Month() != h.Date.Month() {
					// 29 February outside a leap year
					continue
				}
				closed[d.Format(DateLayout)] = true
			}
		}
	}

	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) || closed[d.Format(DateLayout)] {
			continue
		}
		n++
	}
	return n, nil
}
