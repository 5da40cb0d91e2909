package pdf

import (
	"fmt"
	"time"
)

type era struct {
	name  string
	start time.Time
}

// eras is newest first; start dates are the first day of each era.
var eras = []era{
	{"令和", time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)},
	{"平成", time.Date(1989, 1, 8, 0, 0, 0, 0, time.UTC)},
	{"昭和", time.Date(1926, 12, 25, 0, 0, 0, 0, time.UTC)},
	{"大正", time.Date(1912, 7, 30, 0, 0, 0, 0, time.UTC)},
	{"明治", time.Date(1868, 10, 23, 0, 0, 0, 0, time.UTC)},
}

var weekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// EraYear returns the era name and era-relative year label of t's calendar date.
// Dates before Meiji fall back to the Gregorian year with an empty era name.
func EraYear(t time.Time) (string, string) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for _, e := range eras {
		if day.Before(e.start) {
			continue
		}
		y := t.Year() - e.start.Year() + 1
		if y == 1 {
			return e.name, "元"
		}
		return e.name, fmt.Sprint(y)
	}
	return "", fmt.Sprint(t.Year())
}

// FormatWareki renders t in loc as 令和8年1月15日木曜8時00分.
func FormatWareki(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	name, year := EraYear(t)
	return fmt.Sprintf("%s%s年%d月%d日%s曜%d時%02d分", name, year, int(t.Month()), t.Day(), weekdays[t.Weekday()], t.Hour(), t.Minute())
}
