// README: Major US holiday calendar used by the holiday fee.
package pricing

import (
	"time"

	"cloud.google.com/go/civil"
)

// USHolidays returns the major holidays of year: New Year's Day, Memorial Day,
// Independence Day, Labor Day, Thanksgiving and Christmas.
func USHolidays(year int) []civil.Date {
	return []civil.Date{
		{Year: year, Month: time.January, Day: 1},
		lastWeekday(year, time.May, time.Monday),
		{Year: year, Month: time.July, Day: 4},
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		{Year: year, Month: time.December, Day: 25},
	}
}

// HolidaysBetween concatenates USHolidays for every year in [from, to].
func HolidaysBetween(from, to int) []civil.Date {
	var out []civil.Date
	for y := from; y <= to; y++ {
		out = append(out, USHolidays(y)...)
	}
	return out
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) civil.Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return civil.DateOf(first.AddDate(0, 0, offset+7*(n-1)))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) civil.Date {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return civil.DateOf(last.AddDate(0, 0, -offset))
}
