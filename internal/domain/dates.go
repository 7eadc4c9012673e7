package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical wire format for all dates in the roster.
const DateFormat = "2006-01-02"

// dateInputFormats lists the accepted input layouts, tried in order.
// Registration forms historically submitted Swiss dotted dates alongside
// ISO ones, so both families are accepted on the way in.
var dateInputFormats = []string{
	DateFormat,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
}

// ParseDate parses a date string in any accepted input format and returns
// it truncated to a date-only UTC value.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateInputFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// FormatDate renders a date in the canonical format. Zero times render
// as an empty string.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateFormat)
}

// YearsBetween returns the whole-year difference between from and to,
// i.e. the number of completed years, never rounding up.
func YearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	anniversary := from.AddDate(years, 0, 0)
	if anniversary.After(to) {
		years--
	}
	return years
}

// Weekdays are the only values accepted in a selected-days set.
var Weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// IsWeekday reports whether name is one of the seven weekday names.
func IsWeekday(name string) bool {
	for _, d := range Weekdays {
		if d == name {
			return true
		}
	}
	return false
}
