package model

import (
	"errors"
	"time"
)

// ErrSlotTaken is returned by the booking store when the exclusion constraint over
// (table_id, time range) rejects an insert.
var ErrSlotTaken = errors.New("table already booked for an overlapping interval")

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyCancelled    = errors.New("reservation already cancelled")
)

// Interval is a half-open absolute interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [Start,End) and [o.Start,o.End) share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

type Table struct {
	ID       string
	Capacity int
}

type ReservationStatus string

const (
	ReservationBooked    ReservationStatus = "booked"
	ReservationSeated    ReservationStatus = "seated"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID        string
	TableID   string
	Start     time.Time
	End       time.Time
	PartySize int
	Status    ReservationStatus
	GuestName string
	Phone     string
	CreatedAt time.Time
}

func (r Reservation) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}

// Blocks reports whether the reservation still holds its table.
func (r Reservation) Blocks() bool {
	return r.Status != ReservationCancelled
}

type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
)

// PrivateEvent blocks the venue (TableID empty) or a single table for [Start, End).
type PrivateEvent struct {
	ID      string
	TableID string
	Start   time.Time
	End     time.Time
	FullDay bool
	Status  EventStatus
	Title   string
}

func (e PrivateEvent) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}

func (e PrivateEvent) Active() bool {
	return e.Status == EventActive
}

func (e PrivateEvent) VenueWide() bool {
	return e.TableID == ""
}

// AppliesTo reports whether the event blocks the given table.
func (e PrivateEvent) AppliesTo(tableID string) bool {
	return e.VenueWide() || e.TableID == tableID
}

// Slot is a bookable interval together with the table the allocator picked for it.
type Slot struct {
	Start   time.Time
	End     time.Time
	TableID string
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}
