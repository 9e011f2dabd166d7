package leave

import (
	"fmt"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
)

// fixed-date national holidays, repeated every year.
var recurringHolidays = []struct {
	month time.Month
	day   int
	name  string
}{
	{time.January, 1, "New Year's Day"},
	{time.April, 9, "Araw ng Kagitingan"},
	{time.May, 1, "Labor Day"},
	{time.June, 12, "Independence Day"},
	{time.August, 21, "Ninoy Aquino Day"},
	{time.November, 1, "All Saints' Day"},
	{time.November, 30, "Bonifacio Day"},
	{time.December, 8, "Feast of the Immaculate Conception"},
	{time.December, 25, "Christmas Day"},
	{time.December, 30, "Rizal Day"},
	{time.December, 31, "Last Day of the Year"},
}

// PhilippineHolidays returns the national holidays for year: the fixed
// dates as recurring entries plus National Heroes Day, which moves.
func PhilippineHolidays(year int) []core.Holiday {
	out := make([]core.Holiday, 0, len(recurringHolidays)+1)
	for _, h := range recurringHolidays {
		out = append(out, core.Holiday{
			ID:        fmt.Sprintf("ph-%02d%02d", int(h.month), h.day),
			Date:      time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC),
			Name:      h.name,
			Recurring: true,
		})
	}
	heroes := LastWeekday(year, time.August, time.Monday)
	out = append(out, core.Holiday{
		ID:   fmt.Sprintf("ph-heroes-%d", year),
		Date: heroes,
		Name: "National Heroes Day",
	})
	return out
}

// LastWeekday returns the last given weekday of a month.
func LastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
