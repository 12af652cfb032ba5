// Package dateutil provides naive calendar-date arithmetic for the planner.
// A Date carries no time of day and no timezone; all computation is plain
// proleptic-Gregorian calendar math, so results never depend on host locale
// or zone configuration.
package dateutil

import (
	"fmt"
	"iter"
	"time"
)

// ErrorType represents the type of date error
type ErrorType string

const (
	ErrInvalidDate  ErrorType = "invalid_date"
	ErrInvalidRange ErrorType = "invalid_range"
)

// Error represents a date-related error
type Error struct {
	Type    ErrorType
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Date is a single calendar date. The zero value is not a valid date;
// use New or ParseISO to construct one.
type Date struct {
	t time.Time
}

// New constructs a Date from year, month and day. Out-of-range values are
// normalized the way time.Date normalizes them.
func New(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates a timestamp to its calendar date.
func FromTime(t time.Time) Date {
	return New(t.Year(), t.Month(), t.Day())
}

// ParseISO parses a strict YYYY-MM-DD string. The input must be exactly
// 10 characters with a valid month and a valid day for that month.
func ParseISO(s string) (Date, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return Date{}, &Error{Type: ErrInvalidDate, Message: fmt.Sprintf("malformed date %q, want YYYY-MM-DD", s)}
	}
	year, ok1 := parseDigits(s[0:4])
	month, ok2 := parseDigits(s[5:7])
	day, ok3 := parseDigits(s[8:10])
	if !ok1 || !ok2 || !ok3 {
		return Date{}, &Error{Type: ErrInvalidDate, Message: fmt.Sprintf("malformed date %q, want YYYY-MM-DD", s)}
	}
	if month < 1 || month > 12 {
		return Date{}, &Error{Type: ErrInvalidDate, Message: fmt.Sprintf("month %d out of range in %q", month, s)}
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return Date{}, &Error{Type: ErrInvalidDate, Message: fmt.Sprintf("day %d out of range in %q", day, s)}
	}
	return New(year, time.Month(month), day), nil
}

// MustParseISO is ParseISO that panics on malformed input. Intended for
// literals in tests and fixtures.
func MustParseISO(s string) Date {
	d, err := ParseISO(s)
	if err != nil {
		panic(err)
	}
	return d
}

func parseDigits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// String formats the date as YYYY-MM-DD. Round-trips through ParseISO.
func (d Date) String() string {
	return d.t.Format("2006-01-02")
}

// Weekday returns the day of week with the fixed convention
// 0=Sunday .. 6=Saturday.
func (d Date) Weekday() int {
	return int(d.t.Weekday())
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return Date{t: d.t.AddDate(0, 0, 1)}
}

// AddDays returns the date n days later; n may be negative.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether d and other are the same calendar date.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// IsZero reports whether d is the uninitialized zero value.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns the date as a UTC-midnight timestamp.
func (d Date) Time() time.Time { return d.t }

// DaysUntil returns the number of whole days from d to other. Negative when
// other is earlier.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t) / (24 * time.Hour))
}

// ValidateRange checks that start does not come after end.
func ValidateRange(start, end Date) error {
	if start.After(end) {
		return &Error{
			Type:    ErrInvalidRange,
			Message: fmt.Sprintf("range start %s after end %s", start, end),
		}
	}
	return nil
}

// Between returns a lazy ascending sequence of every calendar date from
// start to end inclusive. The sequence is finite and restartable; iterating
// it twice yields the same dates. Fails when start comes after end.
func Between(start, end Date) (iter.Seq[Date], error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	return func(yield func(Date) bool) {
		for d := start; !d.After(end); d = d.Next() {
			if !yield(d) {
				return
			}
		}
	}, nil
}
