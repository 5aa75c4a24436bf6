package availability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/hours"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/memstore"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/reason"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var (
	newYork  = civil.MustLoadZone("America/New_York")
	thursday = civil.Date{Year: 2026, Month: time.March, Day: 5}
	now      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func local(d civil.Date, hour, minute int) time.Time {
	return civil.ToInstant(d, civil.Clock(hour*60+minute), newYork)
}

// venue has dinner service Thursday to Saturday, one 2-top and one 4-top.
func venue() *memstore.Store {
	store := memstore.New()
	for _, wd := range []time.Weekday{time.Thursday, time.Friday, time.Saturday} {
		store.SetHours(wd, civil.Range{Start: 18 * 60, End: 23 * 60})
	}
	store.AddTables(model.Table{ID: "two", Capacity: 2}, model.Table{ID: "four", Capacity: 4})
	return store
}

func newService(t *testing.T, store *memstore.Store) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Zone = newYork
	svc, err := NewService(cfg, store, store,
		WithClock(fixedClock{t: now}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestCheck_AssignsSpareLargerTable(t *testing.T) {
	store := venue()
	store.AddReservation(model.Reservation{
		ID: "r1", TableID: "two", PartySize: 2, Status: model.ReservationBooked,
		Start: local(thursday, 19, 0), End: local(thursday, 21, 0),
	})

	res, err := newService(t, store).CheckAvailability(context.Background(), "2026-03-05", "19:00", 2)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if !res.Available {
		t.Fatalf("expected available, got %s: %s", res.ReasonCode(), res.ReasonMessage())
	}
	if res.Table == nil || res.Table.ID != "four" {
		t.Fatalf("expected the 4-top, got %+v", res.Table)
	}
	if res.Interval.End.Sub(res.Interval.Start) != 90*time.Minute {
		t.Fatalf("expected a 90 minute hold, got %s", res.Interval.End.Sub(res.Interval.Start))
	}
}

func TestCheck_FullDayPrivateEvent(t *testing.T) {
	store := venue()
	store.AddEvent(model.PrivateEvent{
		ID: "wedding", FullDay: true, Status: model.EventActive,
		Start: local(thursday, 0, 0), End: local(thursday.AddDays(1), 0, 0),
	})
	svc := newService(t, store)

	res, err := svc.CheckAvailability(context.Background(), "2026-03-05", "19:00", 2)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if res.Available || res.Table != nil {
		t.Fatalf("expected unavailable with no table, got %+v", res)
	}
	if res.ReasonCode() != reason.CodePrivateEventFull {
		t.Fatalf("expected private_event_full, got %s", res.ReasonCode())
	}
	if !strings.Contains(res.ReasonMessage(), "Thursday, March 5, 2026") {
		t.Fatalf("message should carry the date: %q", res.ReasonMessage())
	}

	slots, err := svc.ListAvailableSlots(context.Background(), "2026-03-05", 2)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestCheck_OutsideHoursListsOpenRanges(t *testing.T) {
	res, err := newService(t, venue()).CheckAvailability(context.Background(), "2026-03-05", "14:00", 2)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if res.Available || res.ReasonCode() != reason.CodeOutsideHours {
		t.Fatalf("expected outside_hours, got %+v", res)
	}
	if !strings.Contains(res.ReasonMessage(), "18:00-23:00") {
		t.Fatalf("message should list the open ranges: %q", res.ReasonMessage())
	}
	r, ok := res.Reason.(reason.OutsideHours)
	if !ok || !reflect.DeepEqual(r.Open, []civil.Range{{Start: 18 * 60, End: 23 * 60}}) {
		t.Fatalf("unexpected reason %#v", res.Reason)
	}
}

func TestCheck_Idempotent(t *testing.T) {
	store := venue()
	store.AddReservation(model.Reservation{
		ID: "r1", TableID: "two", PartySize: 2, Status: model.ReservationBooked,
		Start: local(thursday, 19, 0), End: local(thursday, 21, 0),
	})
	svc := newService(t, store)

	for _, at := range []string{"19:00", "14:00", "21:45"} {
		first, err := svc.CheckAvailability(context.Background(), "2026-03-05", at, 2)
		if err != nil {
			t.Fatalf("first check failed: %v", err)
		}
		second, err := svc.CheckAvailability(context.Background(), "2026-03-05", at, 2)
		if err != nil {
			t.Fatalf("second check failed: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("%s: results differ: %+v vs %+v", at, first, second)
		}
	}
}

func TestCheck_DecisionOrder(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memstore.Store)
		date  string
		time  string
		party int
		want  reason.Code
	}{
		{
			name:  "past request",
			date:  "2026-02-26",
			time:  "19:00",
			party: 2,
			want:  reason.CodeOutsideBookingWindow,
		},
		{
			name:  "too far ahead",
			date:  "2026-06-04",
			time:  "19:00",
			party: 2,
			want:  reason.CodeOutsideBookingWindow,
		},
		{
			name:  "closed weekday",
			date:  "2026-03-02",
			time:  "19:00",
			party: 2,
			want:  reason.CodeClosedWeekday,
		},
		{
			name: "full day closure",
			setup: func(s *memstore.Store) {
				s.AddClosure(hours.Closure{Date: thursday, FullDay: true, Notice: "Closed for renovation."})
			},
			date:  "2026-03-05",
			time:  "19:00",
			party: 2,
			want:  reason.CodeFullDayClosure,
		},
		{
			name: "partial closure covers request",
			setup: func(s *memstore.Store) {
				s.AddClosure(hours.Closure{Date: thursday, Ranges: []civil.Range{{Start: 19 * 60, End: 21 * 60}}})
			},
			date:  "2026-03-05",
			time:  "19:00",
			party: 2,
			want:  reason.CodePartialClosure,
		},
		{
			name: "event checked before hours",
			setup: func(s *memstore.Store) {
				s.AddEvent(model.PrivateEvent{ID: "lunch", Status: model.EventActive,
					Start: local(thursday, 13, 0), End: local(thursday, 15, 0)})
			},
			date:  "2026-03-05",
			time:  "14:00",
			party: 2,
			want:  reason.CodePrivateEventPartial,
		},
		{
			name:  "party outlasts closing time",
			date:  "2026-03-05",
			time:  "21:30",
			party: 3,
			want:  reason.CodeOutsideHours,
		},
		{
			name: "every table taken",
			setup: func(s *memstore.Store) {
				for _, id := range []string{"two", "four"} {
					s.AddReservation(model.Reservation{ID: "r-" + id, TableID: id, Status: model.ReservationBooked,
						Start: local(thursday, 18, 30), End: local(thursday, 20, 0)})
				}
			},
			date:  "2026-03-05",
			time:  "19:00",
			party: 2,
			want:  reason.CodeNoTableFit,
		},
		{
			name:  "no table large enough",
			date:  "2026-03-05",
			time:  "19:00",
			party: 6,
			want:  reason.CodeNoTableFit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := venue()
			if tt.setup != nil {
				tt.setup(store)
			}
			res, err := newService(t, store).CheckAvailability(context.Background(), tt.date, tt.time, tt.party)
			if err != nil {
				t.Fatalf("CheckAvailability failed: %v", err)
			}
			if res.Available {
				t.Fatal("expected unavailable")
			}
			if res.ReasonCode() != tt.want {
				t.Fatalf("expected %s, got %s (%s)", tt.want, res.ReasonCode(), res.ReasonMessage())
			}
			if res.ReasonMessage() == "" {
				t.Fatal("expected a message")
			}
		})
	}
}

func TestCheck_SmallPartyFitsBeforeClose(t *testing.T) {
	res, err := newService(t, venue()).CheckAvailability(context.Background(), "2026-03-05", "21:30", 2)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if !res.Available || res.Table.ID != "two" {
		t.Fatalf("expected the 2-top at 21:30, got %+v", res)
	}
}

func TestCheck_ValidationRunsBeforeStores(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		time  string
		party int
		field string
	}{
		{name: "bad date", date: "2026-02-30", time: "19:00", party: 2, field: "date"},
		{name: "bad time", date: "2026-03-05", time: "7pm", party: 2, field: "time"},
		{name: "missing time", date: "2026-03-05", time: "", party: 2, field: "time"},
		{name: "end of day", date: "2026-03-05", time: "24:00", party: 2, field: "time"},
		{name: "empty party", date: "2026-03-05", time: "19:00", party: 0, field: "party_size"},
		{name: "party too large", date: "2026-03-05", time: "19:00", party: 21, field: "party_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := venue()
			_, err := newService(t, store).CheckAvailability(context.Background(), tt.date, tt.time, tt.party)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, verr.Field)
			}
			if store.Reads() != 0 {
				t.Fatalf("expected no store reads, got %d", store.Reads())
			}
		})
	}
}

func TestCheck_ConfigurationAndTransientErrors(t *testing.T) {
	empty := memstore.New()
	empty.AddTables(model.Table{ID: "two", Capacity: 2})
	_, err := newService(t, empty).CheckAvailability(context.Background(), "2026-03-05", "19:00", 2)
	if !IsConfiguration(err) || !errors.Is(err, hours.ErrNotConfigured) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, err := newService(t, empty).ListAvailableSlots(context.Background(), "2026-03-05", 2); !IsConfiguration(err) {
		t.Fatalf("expected ConfigurationError from listing, got %v", err)
	}

	overlapping := venue()
	overlapping.SetHours(time.Friday, civil.Range{Start: 18 * 60, End: 23 * 60}, civil.Range{Start: 22 * 60, End: 23*60 + 30})
	_, err = newService(t, overlapping).ListAvailableSlots(context.Background(), "2026-03-05", 2)
	if !IsConfiguration(err) || !errors.Is(err, hours.ErrInvalidCalendar) {
		t.Fatalf("expected ConfigurationError for overlapping hours, got %v", err)
	}

	down := venue()
	down.Fail = errors.New("connection refused")
	_, err = newService(t, down).CheckAvailability(context.Background(), "2026-03-05", "19:00", 2)
	if !IsTransient(err) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if IsConfiguration(err) || IsValidation(err) {
		t.Fatalf("transient error misclassified: %v", err)
	}
}

func TestListAvailableSlots_NeverOverlapsTableBookings(t *testing.T) {
	store := venue()
	booked := []model.Reservation{
		{ID: "r1", TableID: "two", Status: model.ReservationBooked, Start: local(thursday, 19, 0), End: local(thursday, 21, 0)},
		{ID: "r2", TableID: "four", Status: model.ReservationSeated, Start: local(thursday, 18, 0), End: local(thursday, 20, 0)},
		{ID: "r3", TableID: "four", Status: model.ReservationCancelled, Start: local(thursday, 21, 0), End: local(thursday, 23, 0)},
	}
	for _, r := range booked {
		store.AddReservation(r)
	}
	store.AddEvent(model.PrivateEvent{ID: "vip", TableID: "two", Status: model.EventActive,
		Start: local(thursday, 21, 0), End: local(thursday, 22, 0)})

	slots, err := newService(t, store).ListAvailableSlots(context.Background(), "2026-03-05", 2)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected some slots")
	}
	for i, s := range slots {
		for _, r := range booked {
			if r.TableID == s.TableID && r.Blocks() && s.Interval().Overlaps(r.Interval()) {
				t.Fatalf("slot %s on %s overlaps reservation %s", s.Start, s.TableID, r.ID)
			}
		}
		if s.TableID == "two" && s.Interval().Overlaps(model.Interval{Start: local(thursday, 21, 0), End: local(thursday, 22, 0)}) {
			t.Fatalf("slot %s overlaps the table event", s.Start)
		}
		if i > 0 && !slots[i-1].Start.Before(s.Start) {
			t.Fatalf("slots out of order at %d", i)
		}
	}
}

func TestDay_VenueEventRemovedFromOpenRanges(t *testing.T) {
	store := venue()
	store.AddEvent(model.PrivateEvent{ID: "tasting", Status: model.EventActive,
		Start: local(thursday, 19, 0), End: local(thursday, 21, 0)})

	day, err := newService(t, store).Day(context.Background(), "2026-03-05", 2)
	if err != nil {
		t.Fatalf("Day failed: %v", err)
	}
	want := []civil.Range{{Start: 18 * 60, End: 19 * 60}, {Start: 21 * 60, End: 23 * 60}}
	if !reflect.DeepEqual(day.Open, want) {
		t.Fatalf("expected %v, got %v", want, day.Open)
	}
	// Nothing fits in the hour before the event.
	var starts []string
	for _, s := range day.Slots {
		_, c := civil.ToCivil(s.Start, newYork)
		starts = append(starts, c.String())
	}
	if got := strings.Join(starts, ","); got != "21:00,21:15,21:30" {
		t.Fatalf("unexpected slot starts %s", got)
	}
	if day.Reason != nil {
		t.Fatalf("expected no reason, got %v", day.Reason)
	}
}

func TestDay_VenueEventCoveringServiceSetsReason(t *testing.T) {
	store := venue()
	store.AddEvent(model.PrivateEvent{ID: "gala", Status: model.EventActive,
		Start: local(thursday, 17, 0), End: local(thursday, 23, 30)})

	day, err := newService(t, store).Day(context.Background(), "2026-03-05", 2)
	if err != nil {
		t.Fatalf("Day failed: %v", err)
	}
	if len(day.Slots) != 0 || len(day.Open) != 0 {
		t.Fatalf("expected nothing open, got open=%v slots=%d", day.Open, len(day.Slots))
	}
	if day.Reason == nil || day.Reason.Code() != reason.CodePrivateEventPartial {
		t.Fatalf("expected private event reason, got %v", day.Reason)
	}
	if !strings.Contains(day.Reason.Message(), "17:00") {
		t.Fatalf("message should name the event window: %q", day.Reason.Message())
	}
}

func TestDay_ClosedReasons(t *testing.T) {
	svc := newService(t, venue())

	day, err := svc.Day(context.Background(), "2026-03-02", 2)
	if err != nil {
		t.Fatalf("Day failed: %v", err)
	}
	if day.Reason == nil || day.Reason.Code() != reason.CodeClosedWeekday || len(day.Slots) != 0 {
		t.Fatalf("expected closed weekday, got %+v", day)
	}

	day, err = svc.Day(context.Background(), "2026-02-26", 2)
	if err != nil {
		t.Fatalf("Day failed: %v", err)
	}
	if day.Reason == nil || day.Reason.Code() != reason.CodeOutsideBookingWindow {
		t.Fatalf("expected outside booking window, got %+v", day)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	cfg.Step = 90 * time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected fractional step to be rejected")
	}
}
