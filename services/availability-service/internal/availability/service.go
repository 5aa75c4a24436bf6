// Package availability answers whether a party can be seated at a local date and time, and which
// start times are bookable on a date. It only reads: committing a reservation is left to the
// booking package, which re-runs the check under the storage exclusion constraint.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/allocation"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/closure"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/hours"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/reason"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/slots"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// CalendarStore is the operator-managed side: weekly hours, closures and private events.
type CalendarStore interface {
	hours.Store
	closure.EventSource
}

type BookingStore interface {
	// Tables returns tables with capacity >= minCapacity.
	Tables(ctx context.Context, minCapacity int) ([]model.Table, error)
	// ReservationsOverlapping returns non-cancelled reservations overlapping window.
	ReservationsOverlapping(ctx context.Context, window model.Interval) ([]model.Reservation, error)
}

type Result struct {
	Available bool
	Reason    reason.Reason
	// Table is the table the allocator picked; nil when not available.
	Table    *model.Table
	Interval model.Interval
}

func (r Result) ReasonCode() reason.Code {
	if r.Reason == nil {
		return ""
	}
	return r.Reason.Code()
}

func (r Result) ReasonMessage() string {
	if r.Reason == nil {
		return ""
	}
	return r.Reason.Message()
}

// Day is the enumeration for one date. Reason is set when the date offers nothing because it is
// closed or out of the booking window; a day that is open but fully booked has no reason.
type Day struct {
	Date   civil.Date
	Open   []civil.Range
	Slots  []model.Slot
	Reason reason.Reason
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	cfg      Config
	resolver *hours.Resolver
	guard    *closure.Guard
	bookings BookingStore
	clock    Clock
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(cfg Config, calendar CalendarStore, bookings BookingStore, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if calendar == nil || bookings == nil {
		return nil, errors.New("availability: calendar and booking stores are required")
	}
	s := &Service{
		cfg:      cfg,
		resolver: hours.NewResolver(calendar),
		guard:    closure.NewGuard(calendar, cfg.Zone),
		bookings: bookings,
		clock:    SystemClock{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("availability"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Config() Config { return s.cfg }

// Request is a parsed and validated booking request.
type Request struct {
	Date      civil.Date
	Time      civil.Clock
	PartySize int
}

// ParseRequest validates raw input. Time may be empty when only a date is needed.
func (s *Service) ParseRequest(localDate, localTime string, partySize int) (Request, error) {
	date, err := civil.ParseDate(localDate)
	if err != nil {
		return Request{}, invalid("date", err)
	}
	req := Request{Date: date, PartySize: partySize}
	if localTime != "" {
		c, err := civil.ParseClock(localTime)
		if err != nil {
			return Request{}, invalid("time", err)
		}
		if c >= civil.EndOfDay {
			return Request{}, invalid("time", civil.ErrInvalidClock)
		}
		req.Time = c
	}
	if partySize < 1 || partySize > s.cfg.MaxPartySize {
		return Request{}, invalid("party_size", fmt.Errorf("must be between 1 and %d", s.cfg.MaxPartySize))
	}
	return req, nil
}

// CheckAvailability decides a single request. Stages run in order and the first one that fails
// supplies the reason: booking window, private events, opening hours, table allocation.
func (s *Service) CheckAvailability(ctx context.Context, localDate, localTime string, partySize int) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "availability.check", trace.WithAttributes(
		attribute.String("availability.date", localDate),
		attribute.String("availability.time", localTime),
		attribute.Int("availability.party_size", partySize),
	))
	defer span.End()

	if localTime == "" {
		err := invalid("time", civil.ErrInvalidClock)
		recordError(span, err)
		return Result{}, err
	}
	req, err := s.ParseRequest(localDate, localTime, partySize)
	if err != nil {
		recordError(span, err)
		return Result{}, err
	}

	res, err := s.check(ctx, req)
	if err != nil {
		recordError(span, err)
		s.logger.Warn("availability check failed", "date", localDate, "time", localTime, "party_size", partySize, "err", err)
		return Result{}, err
	}
	span.SetAttributes(attribute.Bool("availability.available", res.Available))
	if res.Reason != nil {
		span.SetAttributes(attribute.String("availability.reason_code", string(res.Reason.Code())))
	}
	s.logger.Debug("availability checked",
		"date", localDate, "time", localTime, "party_size", partySize,
		"available", res.Available, "reason", res.ReasonCode())
	return res, nil
}

func (s *Service) check(ctx context.Context, req Request) (Result, error) {
	z := s.cfg.Zone
	start := civil.ToInstant(req.Date, req.Time, z)
	iv := model.Interval{Start: start, End: start.Add(s.cfg.Durations.For(req.PartySize))}
	unavailable := func(r reason.Reason) Result {
		return Result{Reason: r, Interval: iv}
	}

	if r := s.bookingWindow(req.Date, &start); r != nil {
		return unavailable(r), nil
	}

	events, err := s.guard.Events(ctx, req.Date, s.cfg.Durations.Longest())
	if err != nil {
		return Result{}, storeError("load private events", err)
	}
	if d := s.guard.Check(req.Date, events, &iv); d.Blocked {
		return unavailable(d.Reason), nil
	}

	day, err := s.resolver.Resolve(ctx, req.Date)
	if err != nil {
		return Result{}, storeError("resolve opening hours", err)
	}
	if day.Reason != nil {
		return unavailable(day.Reason), nil
	}
	if !hours.Contains(day.Open, req.Date, z, iv) {
		if day.Closure != nil && hours.Contains(day.Base, req.Date, z, iv) {
			return unavailable(reason.PartialClosure{Date: req.Date, Notice: day.Closure.Notice, Open: day.Open}), nil
		}
		return unavailable(reason.OutsideHours{Date: req.Date, Open: day.Open}), nil
	}

	tables, err := s.bookings.Tables(ctx, req.PartySize)
	if err != nil {
		return Result{}, storeError("load tables", err)
	}
	reservations, err := s.bookings.ReservationsOverlapping(ctx, iv)
	if err != nil {
		return Result{}, storeError("load reservations", err)
	}
	table, ok := allocation.Allocate(iv, req.PartySize, tables, reservations, events)
	if !ok {
		return unavailable(reason.NoTableFit{At: civil.At(start, z), PartySize: req.PartySize}), nil
	}
	return Result{Available: true, Table: &table, Interval: iv}, nil
}

// ListAvailableSlots returns the bookable slots of a date in chronological order.
func (s *Service) ListAvailableSlots(ctx context.Context, localDate string, partySize int) ([]model.Slot, error) {
	day, err := s.Day(ctx, localDate, partySize)
	if err != nil {
		return nil, err
	}
	return day.Slots, nil
}

// Day enumerates a date. Opening hours are resolved first and venue-wide private events are then
// removed from them the same way exceptional closures are.
func (s *Service) Day(ctx context.Context, localDate string, partySize int) (Day, error) {
	ctx, span := s.tracer.Start(ctx, "availability.slots", trace.WithAttributes(
		attribute.String("availability.date", localDate),
		attribute.Int("availability.party_size", partySize),
	))
	defer span.End()

	req, err := s.ParseRequest(localDate, "", partySize)
	if err != nil {
		recordError(span, err)
		return Day{}, err
	}
	day, err := s.day(ctx, req)
	if err != nil {
		recordError(span, err)
		s.logger.Warn("slot listing failed", "date", localDate, "party_size", partySize, "err", err)
		return Day{}, err
	}
	span.SetAttributes(attribute.Int("availability.slot_count", len(day.Slots)))
	if day.Reason != nil {
		span.SetAttributes(attribute.String("availability.reason_code", string(day.Reason.Code())))
	}
	return day, nil
}

func (s *Service) day(ctx context.Context, req Request) (Day, error) {
	z := s.cfg.Zone
	out := Day{Date: req.Date}

	if r := s.bookingWindow(req.Date, nil); r != nil {
		out.Reason = r
		return out, nil
	}

	resolved, err := s.resolver.Resolve(ctx, req.Date)
	if err != nil {
		return Day{}, storeError("resolve opening hours", err)
	}
	if resolved.Reason != nil {
		out.Reason = resolved.Reason
		return out, nil
	}

	longest := s.cfg.Durations.Longest()
	events, err := s.guard.Events(ctx, req.Date, longest)
	if err != nil {
		return Day{}, storeError("load private events", err)
	}
	open, decision := s.guard.Subtract(req.Date, resolved.Open, events)
	if decision.Blocked {
		out.Reason = decision.Reason
		return out, nil
	}
	out.Open = open
	if len(open) == 0 {
		return out, nil
	}

	tables, err := s.bookings.Tables(ctx, req.PartySize)
	if err != nil {
		return Day{}, storeError("load tables", err)
	}
	dayStart, dayEnd := civil.DayWindow(req.Date, z)
	reservations, err := s.bookings.ReservationsOverlapping(ctx, model.Interval{Start: dayStart, End: dayEnd.Add(longest)})
	if err != nil {
		return Day{}, storeError("load reservations", err)
	}

	notBefore := s.clock.Now().Add(s.cfg.MinLead)
	fit := func(iv model.Interval) (model.Table, bool) {
		return allocation.Allocate(iv, req.PartySize, tables, reservations, events)
	}
	out.Slots = slots.Generate(req.Date, z, open, s.cfg.Durations.For(req.PartySize), s.cfg.Step, notBefore, fit)
	return out, nil
}

// bookingWindow rejects dates beyond MaxAdvanceDays and, when start is given, starts sooner than
// MinLead from now. Without start only dates before today are rejected as too soon.
func (s *Service) bookingWindow(date civil.Date, start *time.Time) reason.Reason {
	now := s.clock.Now()
	today, _ := civil.ToCivil(now, s.cfg.Zone)

	if start != nil && start.Before(now.Add(s.cfg.MinLead)) {
		return reason.OutsideBookingWindow{Date: date, TooSoon: true, MinLead: s.cfg.MinLead}
	}
	if start == nil && date.Before(today) {
		return reason.OutsideBookingWindow{Date: date, TooSoon: true}
	}
	if s.cfg.MaxAdvanceDays > 0 {
		last := today.AddDays(s.cfg.MaxAdvanceDays)
		if date.After(last) {
			return reason.OutsideBookingWindow{Date: date, LastDate: last}
		}
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
