package slots

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

// DurationPolicy maps a party size to how long the table is held.
type DurationPolicy struct {
	SmallPartyMaxSize int
	Short             time.Duration
	Long              time.Duration
}

func DefaultDurations() DurationPolicy {
	return DurationPolicy{SmallPartyMaxSize: 2, Short: 90 * time.Minute, Long: 120 * time.Minute}
}

func (p DurationPolicy) For(partySize int) time.Duration {
	if partySize <= p.SmallPartyMaxSize {
		return p.Short
	}
	return p.Long
}

// Longest is the longest hold any party can get.
func (p DurationPolicy) Longest() time.Duration {
	if p.Long > p.Short {
		return p.Long
	}
	return p.Short
}

// FitFunc returns the table that would seat the candidate, or false when none is free.
type FitFunc func(iv model.Interval) (model.Table, bool)

// Candidates enumerates start times within each open range of date at step increments, keeping
// those where start + duration does not pass the range end. Civil times skipped by a DST
// transition are not offered, starts before notBefore are dropped, and the result is ordered by
// start with no instant repeated.
func Candidates(date civil.Date, zone civil.Zone, open []civil.Range, duration, step time.Duration, notBefore time.Time) []model.Interval {
	stepMinutes := civil.Clock(step / time.Minute)
	if duration <= 0 || stepMinutes <= 0 {
		return nil
	}

	seen := make(map[int64]struct{})
	var out []model.Interval
	for _, r := range open {
		if !r.Valid() {
			continue
		}
		rangeEnd := civil.ToInstant(date, r.End, zone)
		for c := r.Start; c < r.End; c += stepMinutes {
			if !civil.Exists(date, c, zone) {
				continue
			}
			start := civil.ToInstant(date, c, zone)
			end := start.Add(duration)
			if end.After(rangeEnd) {
				continue
			}
			if start.Before(notBefore) {
				continue
			}
			key := start.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, model.Interval{Start: start, End: end})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Generate returns the candidates that fit accepts, with the table it picked.
func Generate(date civil.Date, zone civil.Zone, open []civil.Range, duration, step time.Duration, notBefore time.Time, fit FitFunc) []model.Slot {
	var out []model.Slot
	for _, iv := range Candidates(date, zone, open, duration, step, notBefore) {
		table, ok := fit(iv)
		if !ok {
			continue
		}
		out = append(out, model.Slot{Start: iv.Start, End: iv.End, TableID: table.ID})
	}
	return out
}
