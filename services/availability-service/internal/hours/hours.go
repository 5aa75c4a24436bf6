package hours

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/reason"
)

// ErrNotConfigured means the business has no weekly hours at all, as opposed to being closed on
// one weekday.
var ErrNotConfigured = errors.New("no opening hours configured")

// ErrInvalidCalendar wraps every error returned by Calendar.Validate.
var ErrInvalidCalendar = errors.New("invalid opening hours")

// Calendar is the weekly base schedule, weekday -> sorted, non-overlapping civil ranges.
type Calendar map[time.Weekday][]civil.Range

func (c Calendar) Validate() error {
	for wd, ranges := range c {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidCalendar, wd)
		}
		for i, r := range ranges {
			if !r.Valid() {
				return fmt.Errorf("%w: %s: invalid range %s", ErrInvalidCalendar, wd, r)
			}
			if i > 0 && ranges[i-1].End > r.Start {
				return fmt.Errorf("%w: %s: ranges %s and %s overlap or are unsorted", ErrInvalidCalendar, wd, ranges[i-1], r)
			}
		}
	}
	return nil
}

// Closure overrides the weekly schedule for one date. Ranges are ignored when FullDay is set.
type Closure struct {
	Date    civil.Date
	FullDay bool
	Ranges  []civil.Range
	Notice  string
}

type Store interface {
	// BaseHours returns ErrNotConfigured when no weekday has any hours.
	BaseHours(ctx context.Context, weekday time.Weekday) ([]civil.Range, error)
	// ExceptionalClosure returns nil when the date has no override.
	ExceptionalClosure(ctx context.Context, date civil.Date) (*Closure, error)
}

type Resolution struct {
	Date civil.Date
	// Base is the weekly schedule for the weekday before any closure is applied.
	Base []civil.Range
	Open []civil.Range
	// Closure is the exceptional closure applied to the date, if any.
	Closure *Closure
	// Reason is set when the day is closed outright or the closure removed every range.
	Reason reason.Reason
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, date civil.Date) (Resolution, error) {
	base, err := r.store.BaseHours(ctx, date.Weekday())
	if err != nil {
		return Resolution{}, err
	}
	closure, err := r.store.ExceptionalClosure(ctx, date)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Date: date, Base: Normalize(base), Closure: closure}
	if closure != nil && closure.FullDay {
		res.Reason = reason.FullDayClosure{Date: date, Notice: closure.Notice}
		return res, nil
	}
	if len(res.Base) == 0 {
		res.Reason = reason.ClosedWeekday{Date: date}
		return res, nil
	}

	res.Open = res.Base
	if closure != nil {
		res.Open = Subtract(res.Base, closure.Ranges)
		if len(res.Open) == 0 {
			res.Reason = reason.PartialClosure{Date: date, Notice: closure.Notice}
		}
	}
	return res, nil
}

// Normalize drops invalid ranges, sorts by start and merges ranges that overlap. Ranges that only
// touch are kept apart.
func Normalize(ranges []civil.Range) []civil.Range {
	out := make([]civil.Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && r.Start < merged[n-1].End {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Subtract removes every closed range from the open ranges. An open [a,b) cut by a closed [c,d)
// yields [a,c) when c > a and [d,b) when d < b; ranges that do not intersect pass through.
func Subtract(open, closed []civil.Range) []civil.Range {
	out := Normalize(open)
	for _, c := range closed {
		if !c.Valid() {
			continue
		}
		next := make([]civil.Range, 0, len(out)+1)
		for _, o := range out {
			if !o.Overlaps(c) {
				next = append(next, o)
				continue
			}
			if c.Start > o.Start {
				next = append(next, civil.Range{Start: o.Start, End: c.Start})
			}
			if c.End < o.End {
				next = append(next, civil.Range{Start: c.End, End: o.End})
			}
		}
		out = next
	}
	return out
}

// Contains reports whether the absolute interval fits entirely inside one of the civil ranges of
// date in zone z.
func Contains(ranges []civil.Range, date civil.Date, z civil.Zone, iv model.Interval) bool {
	for _, r := range ranges {
		start := civil.ToInstant(date, r.Start, z)
		end := civil.ToInstant(date, r.End, z)
		if !iv.Start.Before(start) && !iv.End.After(end) {
			return true
		}
	}
	return false
}
