package closure

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/hours"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/reason"
)

type EventSource interface {
	// ActivePrivateEvents returns active events overlapping window.
	ActivePrivateEvents(ctx context.Context, window model.Interval) ([]model.PrivateEvent, error)
}

type Decision struct {
	Blocked bool
	Reason  reason.Reason
	Event   *model.PrivateEvent
}

// Guard decides whether venue-wide private events close a date or a window of it. Events bound
// to a single table are left to table allocation.
type Guard struct {
	source EventSource
	zone   civil.Zone
}

func NewGuard(source EventSource, zone civil.Zone) *Guard {
	return &Guard{source: source, zone: zone}
}

// Events loads the active events touching date, sorted by start. pad widens the window on both
// sides so that reservations crossing midnight are still checked against neighbouring events.
func (g *Guard) Events(ctx context.Context, date civil.Date, pad time.Duration) ([]model.PrivateEvent, error) {
	start, end := civil.DayWindow(date, g.zone)
	events, err := g.source.ActivePrivateEvents(ctx, model.Interval{Start: start.Add(-pad), End: end.Add(pad)})
	if err != nil {
		return nil, err
	}
	out := make([]model.PrivateEvent, 0, len(events))
	for _, ev := range events {
		if ev.Active() && ev.Interval().Valid() {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Check runs the full-day test first and, only if that passes, the overlap test against the
// requested window. A nil requested window only runs the full-day test.
func (g *Guard) Check(date civil.Date, events []model.PrivateEvent, requested *model.Interval) Decision {
	if d := g.fullDay(date, events); d.Blocked {
		return d
	}
	if requested == nil {
		return Decision{}
	}
	for i := range events {
		ev := events[i]
		if !ev.Active() || !ev.VenueWide() {
			continue
		}
		if requested.Overlaps(ev.Interval()) {
			return Decision{
				Blocked: true,
				Event:   &ev,
				Reason: reason.PrivateEventPartial{
					Date:  date,
					Start: civil.At(ev.Start, g.zone),
					End:   civil.At(ev.End, g.zone),
				},
			}
		}
	}
	return Decision{}
}

// Subtract removes the part of date covered by venue-wide events from open, the same way
// exceptional closures are removed. A full-day event blocks the date and returns no ranges. When
// partial events consume every open range the date is blocked by the first event that cut into
// the opening hours.
func (g *Guard) Subtract(date civil.Date, open []civil.Range, events []model.PrivateEvent) ([]civil.Range, Decision) {
	if d := g.fullDay(date, events); d.Blocked {
		return nil, d
	}
	dayStart, dayEnd := civil.DayWindow(date, g.zone)
	day := model.Interval{Start: dayStart, End: dayEnd}

	var closed []civil.Range
	var first *model.PrivateEvent
	for i := range events {
		ev := events[i]
		if !ev.Active() || !ev.VenueWide() || !ev.Interval().Overlaps(day) {
			continue
		}
		r := g.clip(date, day, ev.Interval())
		closed = append(closed, r)
		if first == nil && overlapsAny(open, r) {
			first = &ev
		}
	}
	left := hours.Subtract(open, closed)
	if len(left) == 0 && first != nil {
		return nil, Decision{
			Blocked: true,
			Event:   first,
			Reason: reason.PrivateEventPartial{
				Date:  date,
				Start: civil.At(first.Start, g.zone),
				End:   civil.At(first.End, g.zone),
			},
		}
	}
	return left, Decision{}
}

func overlapsAny(ranges []civil.Range, r civil.Range) bool {
	for _, o := range ranges {
		if o.Overlaps(r) {
			return true
		}
	}
	return false
}

func (g *Guard) fullDay(date civil.Date, events []model.PrivateEvent) Decision {
	dayStart, dayEnd := civil.DayWindow(date, g.zone)
	day := model.Interval{Start: dayStart, End: dayEnd}
	for i := range events {
		ev := events[i]
		if ev.Active() && ev.VenueWide() && ev.FullDay && ev.Interval().Overlaps(day) {
			return Decision{Blocked: true, Event: &ev, Reason: reason.PrivateEventFull{Date: date}}
		}
	}
	return Decision{}
}

// clip converts the part of iv inside day to a civil range, rounding the end up to the minute.
func (g *Guard) clip(date civil.Date, day, iv model.Interval) civil.Range {
	r := civil.Range{Start: civil.Midnight, End: civil.EndOfDay}
	if iv.Start.After(day.Start) {
		_, r.Start = civil.ToCivil(iv.Start, g.zone)
	}
	if iv.End.Before(day.End) {
		end := iv.End
		if !end.Truncate(time.Minute).Equal(end) {
			end = end.Truncate(time.Minute).Add(time.Minute)
		}
		if d, c := civil.ToCivil(end, g.zone); d == date {
			r.End = c
		}
	}
	return r
}
