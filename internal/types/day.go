// Package types implements value types of the command line.
package types

import (
	"fmt"
	"regexp"
	"time"
)

var dateOnly = regexp.MustCompile("^[0-9]{4}-[0-9]{2}-[0-9]{2}$")

// Day is a calendar day, stored as midnight UTC.
type Day time.Time

// NewDay returns a new Day.
func NewDay(year int, month time.Month, day int) Day {
	return Day(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DayOf returns the Day in which a time occurs in UTC.
func DayOf(t time.Time) Day {
	t = t.UTC()
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay parses "YYYY-MM-DD" or an RFC3339 timestamp. Everything but
// the day is ignored.
func ParseDay(s string) (Day, error) {
	// This is the default pattern
	pattern := time.RFC3339
	if dateOnly.MatchString(s) {
		pattern = time.DateOnly
	}

	t, err := time.Parse(pattern, s)
	if err != nil {
		return Day{}, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}

	return DayOf(t), nil
}

// String returns the day formatted as YYYY-MM-DD, or an empty string for
// the zero value.
func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return time.Time(d).Format(time.DateOnly)
}

// Set implements pflag.Value.
func (d *Day) Set(s string) error {
	day, err := ParseDay(s)
	if err != nil {
		return err
	}

	*d = day
	return nil
}

// Type implements pflag.Value.
func (Day) Type() string {
	return "date"
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Time(d)
}

// IsZero reports if the day is the zero value.
func (d Day) IsZero() bool {
	return time.Time(d).IsZero()
}

// Or returns d, or fallback if d is the zero value.
func (d Day) Or(fallback time.Time) time.Time {
	if d.IsZero() {
		return fallback
	}
	return d.Time()
}
