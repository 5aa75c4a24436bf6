package civil

import (
	"fmt"
	"strings"
	"time"
)

// Zone is an IANA timezone. The zero value behaves as UTC.
type Zone struct {
	loc *time.Location
}

func UTC() Zone {
	return Zone{loc: time.UTC}
}

func LoadZone(name string) (Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "UTC" {
		return UTC(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("%w %q: %v", ErrInvalidZone, name, err)
	}
	return Zone{loc: loc}, nil
}

func MustLoadZone(name string) Zone {
	z, err := LoadZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

func (z Zone) Name() string {
	return z.Location().String()
}

// ToInstant resolves a civil date and clock in z to an absolute UTC instant.
//
// A clock repeated by a backward transition resolves to its first occurrence. A clock skipped by
// a forward transition is read with the offset in force before the gap, which lands it the gap's
// length later on the wall clock (02:30 becomes 03:30 on a one-hour spring-forward).
func ToInstant(d Date, c Clock, z Zone) time.Time {
	loc := z.Location()
	wall := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Add(time.Duration(c) * time.Minute)

	// Assumes at most one transition within a day either side, which holds for every tzdb zone.
	before := offsetAt(wall.Add(-24*time.Hour), loc)
	after := offsetAt(wall.Add(24*time.Hour), loc)

	var best time.Time
	found := false
	for _, off := range []int{before, after} {
		t := wall.Add(-time.Duration(off) * time.Second)
		if !sameWall(t.In(loc), wall) {
			continue
		}
		if !found || t.Before(best) {
			best, found = t, true
		}
	}
	if found {
		return best.UTC()
	}
	return wall.Add(-time.Duration(before) * time.Second).UTC()
}

// ToCivil reads an instant on the wall clock of z. Seconds are truncated.
func ToCivil(t time.Time, z Zone) (Date, Clock) {
	local := t.In(z.Location())
	return DateOf(local), Clock(local.Hour()*60 + local.Minute())
}

// Exists reports whether the civil time occurs in z, i.e. it is not inside a forward gap.
func Exists(d Date, c Clock, z Zone) bool {
	gotDate, gotClock := ToCivil(ToInstant(d, c, z), z)
	return gotDate == d && gotClock == c
}

// DayWindow returns the absolute bounds [start, end) of the civil date d in z. The window is
// 23 or 25 hours long on transition days.
func DayWindow(d Date, z Zone) (time.Time, time.Time) {
	return ToInstant(d, Midnight, z), ToInstant(d.AddDays(1), Midnight, z)
}

func offsetAt(t time.Time, loc *time.Location) int {
	_, off := t.In(loc).Zone()
	return off
}

func sameWall(local, wall time.Time) bool {
	ly, lm, ld := local.Date()
	wy, wm, wd := wall.Date()
	return ly == wy && lm == wm && ld == wd &&
		local.Hour() == wall.Hour() && local.Minute() == wall.Minute() && local.Second() == wall.Second()
}
