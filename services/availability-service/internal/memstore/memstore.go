// Package memstore keeps calendars, tables and reservations in memory. It enforces the same
// overlap rule as the Postgres exclusion constraint. Only tests import it.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/hours"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

type Store struct {
	mu           sync.RWMutex
	calendar     hours.Calendar
	closures     map[civil.Date]*hours.Closure
	events       []model.PrivateEvent
	tables       []model.Table
	reservations []model.Reservation

	// Fail, when set, is returned by every read.
	Fail error
	// BeforeInsert runs inside InsertReservation before the overlap check, without the lock held.
	BeforeInsert func(r model.Reservation)

	reads int
}

func New() *Store {
	return &Store{calendar: hours.Calendar{}, closures: map[civil.Date]*hours.Closure{}}
}

func (s *Store) SetHours(wd time.Weekday, ranges ...civil.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendar[wd] = ranges
}

func (s *Store) AddClosure(c hours.Closure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closures[c.Date] = &c
}

func (s *Store) AddEvent(ev model.PrivateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *Store) AddTables(tables ...model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, tables...)
}

func (s *Store) AddReservation(r model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append(s.reservations, r)
}

// Reads counts store reads, for tests that assert nothing was loaded.
func (s *Store) Reads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

func (s *Store) read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.Fail
}

func (s *Store) BaseHours(_ context.Context, weekday time.Weekday) ([]civil.Range, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	configured := false
	for _, ranges := range s.calendar {
		if len(ranges) > 0 {
			configured = true
			break
		}
	}
	if !configured {
		return nil, hours.ErrNotConfigured
	}
	if err := s.calendar.Validate(); err != nil {
		return nil, err
	}
	return append([]civil.Range(nil), s.calendar[weekday]...), nil
}

func (s *Store) ExceptionalClosure(_ context.Context, date civil.Date) (*hours.Closure, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.closures[date]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (s *Store) ActivePrivateEvents(_ context.Context, window model.Interval) ([]model.PrivateEvent, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PrivateEvent
	for _, ev := range s.events {
		if ev.Active() && ev.Interval().Overlaps(window) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) Tables(_ context.Context, minCapacity int) ([]model.Table, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Table
	for _, t := range s.tables {
		if t.Capacity >= minCapacity {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ReservationsOverlapping(_ context.Context, window model.Interval) ([]model.Reservation, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.Blocks() && r.Interval().Overlaps(window) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// InsertReservation fails with model.ErrSlotTaken when the table already holds a blocking
// reservation overlapping r.
func (s *Store) InsertReservation(_ context.Context, r model.Reservation) (model.Reservation, error) {
	if s.BeforeInsert != nil {
		s.BeforeInsert(r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reservations {
		if existing.TableID == r.TableID && existing.Blocks() && existing.Interval().Overlaps(r.Interval()) {
			return model.Reservation{}, model.ErrSlotTaken
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reservations = append(s.reservations, r)
	return r, nil
}

func (s *Store) CancelReservation(_ context.Context, id string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reservations {
		if s.reservations[i].ID != id {
			continue
		}
		if s.reservations[i].Status == model.ReservationCancelled {
			return model.Reservation{}, model.ErrAlreadyCancelled
		}
		s.reservations[i].Status = model.ReservationCancelled
		return s.reservations[i], nil
	}
	return model.Reservation{}, model.ErrReservationNotFound
}
