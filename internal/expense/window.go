package expense

import (
	"errors"
	"time"
)

// ErrInvalidDate is returned when a caller-supplied date string does not
// parse as YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD")

// LocalOffset is the fixed IST shift (UTC+5:30) applied to every day,
// week, month and year boundary. It is a static offset, not an IANA
// timezone: historical records were written with this exact convention,
// so queries must keep using it rather than a DST-aware location.
const LocalOffset = 330 * time.Minute

const dateLayout = "2006-01-02"

// Window is a UTC instant range used to filter items by creation time.
// Either bound may be open.
type Window struct {
	Start    time.Time
	End      time.Time
	HasStart bool
	HasEnd   bool
}

// Unbounded matches all records.
func Unbounded() Window { return Window{} }

// toUTC converts a local wall-clock instant (built on the UTC calendar)
// to the real UTC instant by subtracting the fixed offset.
func toUTC(local time.Time) time.Time {
	return local.Add(-LocalOffset)
}

// localNow shifts a UTC instant onto the local calendar so that its
// Year/Month/Day/Weekday accessors read local wall-clock values.
func localNow(now time.Time) time.Time {
	return now.UTC().Add(LocalOffset)
}

// endOfDay is 23:59:59.999 local on the given local calendar date.
func endOfDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 999*int(time.Millisecond), time.UTC)
}

// DayWindow resolves the current local date to [local midnight, open).
func DayWindow(now time.Time) Window {
	ln := localNow(now)
	start := time.Date(ln.Year(), ln.Month(), ln.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: toUTC(start), HasStart: true}
}

// WeekWindow resolves the local week containing now: Monday 00:00:00.000
// through Sunday 23:59:59.999. Sunday counts as 6 days after the prior
// Monday.
func WeekWindow(now time.Time) Window {
	ln := localNow(now)
	offset := 1 - int(ln.Weekday())
	if ln.Weekday() == time.Sunday {
		offset = -6
	}
	monday := time.Date(ln.Year(), ln.Month(), ln.Day()+offset, 0, 0, 0, 0, time.UTC)
	sunday := endOfDay(monday.Year(), monday.Month(), monday.Day()+6)
	return Window{Start: toUTC(monday), End: toUTC(sunday), HasStart: true, HasEnd: true}
}

// DateWindow parses a YYYY-MM-DD string and resolves it to that local
// calendar day: [midnight, 23:59:59.999].
func DateWindow(dateStr string) (Window, error) {
	d, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return Window{}, ErrInvalidDate
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end := endOfDay(d.Year(), d.Month(), d.Day())
	return Window{Start: toUTC(start), End: toUTC(end), HasStart: true, HasEnd: true}, nil
}

// ResolveMonthYear fills zero month/year from the current local date.
func ResolveMonthYear(now time.Time, month, year int) (int, int) {
	ln := localNow(now)
	if month == 0 {
		month = int(ln.Month())
	}
	if year == 0 {
		year = ln.Year()
	}
	return month, year
}

// MonthWindow resolves a calendar month to [first day 00:00:00.000, last
// day 23:59:59.999] local. month is 1-12; zero month or year defaults to
// the current local month/year. Day 0 of the following month yields the
// last valid calendar day, so 28/29/30/31-day months and leap years come
// out right.
func MonthWindow(now time.Time, month, year int) Window {
	month, year = ResolveMonthYear(now, month, year)
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := endOfDay(year, time.Month(month)+1, 0)
	return Window{Start: toUTC(first), End: toUTC(last), HasStart: true, HasEnd: true}
}

// MonthToDateWindow resolves [first of the current local month, open).
// Used by the analytics month bucket.
func MonthToDateWindow(now time.Time) Window {
	ln := localNow(now)
	first := time.Date(ln.Year(), ln.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: toUTC(first), HasStart: true}
}

// YearWindow resolves a calendar year to [Jan 1 00:00:00.000,
// Dec 31 23:59:59.999] local.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := endOfDay(year, time.December, 31)
	return Window{Start: toUTC(start), End: toUTC(end), HasStart: true, HasEnd: true}
}
