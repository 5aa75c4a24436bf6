// Package civil models timezone-naive calendar dates and clock times and converts them to and
// from absolute instants in an explicit IANA zone.
//
// Business rules (opening hours, closures) are expressed in civil time; storage holds UTC
// instants. ToInstant and ToCivil are the only crossing points between the two.
package civil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidClock = errors.New("invalid clock time")
	ErrInvalidZone  = errors.New("invalid timezone")
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Date is a calendar day with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD. Out-of-range days (2026-02-30) are rejected, never normalized.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Long renders the date for guests, e.g. "Thursday, March 5, 2026".
func (d Date) Long() string {
	return d.noon().Format("Monday, January 2, 2006")
}

func (d Date) Weekday() time.Weekday {
	return d.noon().Weekday()
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.noon().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.noon().Before(o.noon())
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

func (d Date) noon() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// Clock is a time of day in minutes after midnight. EndOfDay (24:00) is only meaningful as the
// exclusive end of a Range.
type Clock int

const (
	Midnight Clock = 0
	EndOfDay Clock = 24 * 60
)

// NewClock validates hour and minute. 24:00 is accepted; anything later is not.
func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w %02d:%02d", ErrInvalidClock, hour, minute)
	}
	return Clock(hour*60 + minute), nil
}

// ParseClock parses HH:MM (24-hour). "24:00" is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return EndOfDay, nil
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidClock, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Range is a half-open civil interval [Start, End) within one day.
type Range struct {
	Start Clock
	End   Clock
}

func (r Range) Valid() bool {
	return r.Start >= Midnight && r.End <= EndOfDay && r.Start < r.End
}

func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && r.End > o.Start
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// FormatRanges joins ranges for display: "12:00-14:30, 18:00-23:00".
func FormatRanges(ranges []Range) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}

// DateTime is a civil date and clock read together, used for display.
type DateTime struct {
	Date  Date
	Clock Clock
}

// At reads t on the wall clock of z.
func At(t time.Time, z Zone) DateTime {
	d, c := ToCivil(t, z)
	return DateTime{Date: d, Clock: c}
}

func (dt DateTime) String() string {
	return dt.Date.String() + " " + dt.Clock.String()
}
