// Package reason holds the typed explanations returned when a request cannot be booked.
//
// Each concrete type carries only the fields relevant to its code. Callers that need more than
// the display message switch on the concrete type:
//
//	switch r := res.Reason.(type) {
//	case reason.OutsideHours:
//		suggest(r.Open)
//	case reason.NoTableFit:
//		offerWaitlist(r.PartySize)
//	}
package reason

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
)

type Code string

const (
	CodeOutsideBookingWindow Code = "outside_booking_window"
	CodeClosedWeekday        Code = "closed_weekday"
	CodeFullDayClosure       Code = "full_day_closure"
	CodePartialClosure       Code = "partial_closure"
	CodePrivateEventFull     Code = "private_event_full"
	CodePrivateEventPartial  Code = "private_event_partial"
	CodeOutsideHours         Code = "outside_hours"
	CodeNoTableFit           Code = "no_table_fit"
)

type Reason interface {
	Code() Code
	// Message is suitable for direct display or an SMS reply.
	Message() string
	isReason()
}

// OutsideBookingWindow: the requested start is too soon (or past), or the date is too far ahead.
type OutsideBookingWindow struct {
	Date     civil.Date
	TooSoon  bool
	MinLead  time.Duration
	LastDate civil.Date
}

// ClosedWeekday: the weekly calendar has no hours for this weekday.
type ClosedWeekday struct {
	Date civil.Date
}

// FullDayClosure: an exceptional closure removes the whole date.
type FullDayClosure struct {
	Date   civil.Date
	Notice string
}

// PartialClosure: the request falls in regular hours that an exceptional closure removed.
type PartialClosure struct {
	Date   civil.Date
	Notice string
	Open   []civil.Range
}

// PrivateEventFull: a venue-wide private event blocks the whole date.
type PrivateEventFull struct {
	Date civil.Date
}

// PrivateEventPartial: a venue-wide private event overlaps the requested window.
type PrivateEventPartial struct {
	Date  civil.Date
	Start civil.DateTime
	End   civil.DateTime
}

// OutsideHours: the requested window does not fit in any of the day's open ranges.
type OutsideHours struct {
	Date civil.Date
	Open []civil.Range
}

// NoTableFit: the venue is open but no table large enough is free.
type NoTableFit struct {
	At        civil.DateTime
	PartySize int
}

func (OutsideBookingWindow) Code() Code { return CodeOutsideBookingWindow }
func (ClosedWeekday) Code() Code        { return CodeClosedWeekday }
func (FullDayClosure) Code() Code       { return CodeFullDayClosure }
func (PartialClosure) Code() Code       { return CodePartialClosure }
func (PrivateEventFull) Code() Code     { return CodePrivateEventFull }
func (PrivateEventPartial) Code() Code  { return CodePrivateEventPartial }
func (OutsideHours) Code() Code         { return CodeOutsideHours }
func (NoTableFit) Code() Code           { return CodeNoTableFit }

func (OutsideBookingWindow) isReason() {}
func (ClosedWeekday) isReason()        {}
func (FullDayClosure) isReason()       {}
func (PartialClosure) isReason()       {}
func (PrivateEventFull) isReason()     {}
func (PrivateEventPartial) isReason()  {}
func (OutsideHours) isReason()         {}
func (NoTableFit) isReason()           {}

func (r OutsideBookingWindow) Message() string {
	if r.TooSoon {
		if r.MinLead > 0 {
			return fmt.Sprintf("Bookings must be made at least %s in advance.", humanDuration(r.MinLead))
		}
		return "The requested time has already passed."
	}
	return fmt.Sprintf("We take bookings up to %s; %s is too far ahead.", r.LastDate.Long(), r.Date.Long())
}

func (r ClosedWeekday) Message() string {
	return fmt.Sprintf("We are not open on %ss.", r.Date.Weekday())
}

func (r FullDayClosure) Message() string {
	return withNotice(fmt.Sprintf("We are closed on %s.", r.Date.Long()), r.Notice)
}

func (r PartialClosure) Message() string {
	msg := withNotice(fmt.Sprintf("We are closed at the requested time on %s.", r.Date.Long()), r.Notice)
	if len(r.Open) > 0 {
		msg += fmt.Sprintf(" Still open: %s.", civil.FormatRanges(r.Open))
	}
	return msg
}

func (r PrivateEventFull) Message() string {
	return fmt.Sprintf("We are closed all day on %s for a private event.", r.Date.Long())
}

func (r PrivateEventPartial) Message() string {
	if r.Start.Date == r.End.Date {
		return fmt.Sprintf("We are closed from %s to %s on %s for a private event.",
			r.Start.Clock, r.End.Clock, r.Start.Date.Long())
	}
	return fmt.Sprintf("We are closed from %s %s to %s %s for a private event.",
		r.Start.Date.Long(), r.Start.Clock, r.End.Date.Long(), r.End.Clock)
}

func (r OutsideHours) Message() string {
	if len(r.Open) == 0 {
		return fmt.Sprintf("We have no open hours left on %s.", r.Date.Long())
	}
	return fmt.Sprintf("Our hours on %s are %s.", r.Date.Long(), civil.FormatRanges(r.Open))
}

func (r NoTableFit) Message() string {
	return fmt.Sprintf("No table for %d is free at %s on %s.", r.PartySize, r.At.Clock, r.At.Date.Long())
}

func withNotice(msg, notice string) string {
	notice = strings.TrimSpace(notice)
	if notice == "" {
		return msg
	}
	return msg + " " + notice
}

func humanDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
