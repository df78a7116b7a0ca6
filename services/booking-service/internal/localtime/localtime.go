// Package localtime converts between a tenant's wall clock in an IANA zone and UTC instants.
//
// Nothing here falls back to a default zone; callers decide what to do with
// ErrInvalidTimezone.
package localtime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTemporalInput = errors.New("invalid date or time")
	ErrInvalidTimezone      = errors.New("invalid timezone")
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty zone", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ParseDate validates a YYYY-MM-DD local calendar date.
func ParseDate(dateYMD string) (year int, month time.Month, day int, err error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(dateYMD))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: date %q", ErrInvalidTemporalInput, dateYMD)
	}
	return d.Year(), d.Month(), d.Day(), nil
}

// ParseClock validates an HH:MM wall-clock time. "24:00" is accepted as end of day.
func ParseClock(hhmm string) (hour, minute int, err error) {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "24:00" {
		return 24, 0, nil
	}
	// Stored times may carry seconds (Postgres TIME).
	if len(hhmm) == len("15:04:05") {
		hhmm = hhmm[:5]
	}
	c, err := time.Parse(ClockLayout, hhmm)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidTemporalInput, hhmm)
	}
	return c.Hour(), c.Minute(), nil
}

// LocalToUTC interprets dateYMD at hhmm on the wall clock of zone and returns the UTC instant.
// The zone offset in effect on that date is used, so DST transitions are honoured.
func LocalToUTC(dateYMD, hhmm, zone string) (time.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	return LocalToUTCIn(dateYMD, hhmm, loc)
}

func LocalToUTCIn(dateYMD, hhmm string, loc *time.Location) (time.Time, error) {
	y, m, d, err := ParseDate(dateYMD)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, m, d, hour, minute, 0, 0, loc).UTC(), nil
}

// WeekdayOf returns the weekday (0 = Sunday) of the local date, evaluated at local noon.
func WeekdayOf(dateYMD, zone string) (int, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return 0, err
	}
	return WeekdayIn(dateYMD, loc)
}

func WeekdayIn(dateYMD string, loc *time.Location) (int, error) {
	y, m, d, err := ParseDate(dateYMD)
	if err != nil {
		return 0, err
	}
	return int(time.Date(y, m, d, 12, 0, 0, 0, loc).Weekday()), nil
}

func AddMinutes(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * time.Minute)
}

// DayWindow returns [local midnight, next local midnight) for dateYMD as UTC instants.
func DayWindow(dateYMD string, loc *time.Location) (time.Time, time.Time, error) {
	y, m, d, err := ParseDate(dateYMD)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC(), nil
}

// WeekWindow returns the Monday-first local week containing dateYMD as UTC instants.
func WeekWindow(dateYMD string, loc *time.Location) (time.Time, time.Time, error) {
	y, m, d, err := ParseDate(dateYMD)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	noon := time.Date(y, m, d, 12, 0, 0, 0, loc)
	back := (int(noon.Weekday()) + 6) % 7
	start := time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d-back+7, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC(), nil
}

// Label formats t as HH:MM on the wall clock of loc.
func Label(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(ClockLayout)
}

// DateOf formats t as the YYYY-MM-DD local date in loc.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
