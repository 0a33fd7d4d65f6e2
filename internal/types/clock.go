// README: Wall-clock helpers combining civil dates/times with the service time zone.
package types

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Clock returns the current instant; injected so transitions can be tested at fixed times.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now() }

// ParseDate accepts YYYY-MM-DD.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// ParseClockTime accepts HH:MM or HH:MM:SS in 24h form.
func ParseClockTime(s string) (civil.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.TimeOf(t), nil
		}
	}
	return civil.Time{}, fmt.Errorf("invalid time %q", s)
}

// At converts a wall-clock date and time to an instant in loc.
func At(d civil.Date, t civil.Time, loc *time.Location) time.Time {
	return civil.DateTime{Date: d, Time: t}.In(loc)
}

// MonthKey formats the calendar month of t in loc as YYYY-MM.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// StartOfMonth returns midnight on the first day of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
}

// HHMM renders a civil time without seconds.
func HHMM(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}
