package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/memstore"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var (
	newYork = civil.MustLoadZone("America/New_York")
	quiet   = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func newServer(t *testing.T, store *memstore.Store) *httptest.Server {
	t.Helper()
	cfg := availability.DefaultConfig()
	cfg.Zone = newYork
	svc, err := availability.NewService(cfg, store, store,
		availability.WithClock(fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}),
		availability.WithLogger(quiet),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	h := NewAvailabilityHandler(svc, cache.NewLister(svc, nil, quiet), booking.NewCommitter(svc, store, newYork, 3, nil, quiet), newYork, quiet)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func venue() *memstore.Store {
	store := memstore.New()
	store.SetHours(time.Thursday, civil.Range{Start: 18 * 60, End: 23 * 60})
	store.AddTables(model.Table{ID: "two", Capacity: 2}, model.Table{ID: "four", Capacity: 4})
	return store
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func post(t *testing.T, url, body string, out any) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return resp.StatusCode, string(raw)
}

func TestCheck(t *testing.T) {
	store := venue()
	start := civil.ToInstant(civil.Date{Year: 2026, Month: time.March, Day: 5}, 19*60, newYork)
	store.AddReservation(model.Reservation{ID: "r1", TableID: "two", Status: model.ReservationBooked, Start: start, End: start.Add(2 * time.Hour)})
	srv := newServer(t, store)

	var ok checkResponse
	if code := get(t, srv.URL+"/api/v1/availability/check?date=2026-03-05&time=19:00&party_size=2", &ok); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !ok.Available || ok.Table == nil || ok.Table.ID != "four" {
		t.Fatalf("expected the 4-top, got %+v", ok)
	}
	if ok.StartTime != "2026-03-06T00:00:00Z" || ok.EndTime != "2026-03-06T01:30:00Z" {
		t.Fatalf("unexpected interval %s-%s", ok.StartTime, ok.EndTime)
	}

	var closed checkResponse
	get(t, srv.URL+"/api/v1/availability/check?date=2026-03-05&time=14:00&party_size=2", &closed)
	if closed.Available || closed.ReasonCode != "outside_hours" || !strings.Contains(closed.ReasonMessage, "18:00-23:00") {
		t.Fatalf("unexpected response %+v", closed)
	}
}

func TestCheck_Errors(t *testing.T) {
	srv := newServer(t, venue())
	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "bad party size", path: "/api/v1/availability/check?date=2026-03-05&time=19:00&party_size=two", want: http.StatusBadRequest},
		{name: "bad date", path: "/api/v1/availability/check?date=03/05/2026&time=19:00&party_size=2", want: http.StatusBadRequest},
		{name: "missing time", path: "/api/v1/availability/check?date=2026-03-05&party_size=2", want: http.StatusBadRequest},
		{name: "bad slots party", path: "/api/v1/availability/slots?date=2026-03-05", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := get(t, srv.URL+tt.path, nil); code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, code)
			}
		})
	}

	resp, err := http.Post(srv.URL+"/api/v1/availability/check", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestCheck_StoreFailures(t *testing.T) {
	empty := memstore.New()
	srv := newServer(t, empty)
	resp, err := http.Get(srv.URL + "/api/v1/availability/check?date=2026-03-05&time=19:00&party_size=2")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(string(body), "calendar not configured") {
		t.Fatalf("expected 500 calendar not configured, got %d %q", resp.StatusCode, body)
	}

	down := venue()
	down.Fail = errors.New("connection refused")
	srv = newServer(t, down)
	if code := get(t, srv.URL+"/api/v1/availability/slots?date=2026-03-05&party_size=2", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestSlots(t *testing.T) {
	srv := newServer(t, venue())

	var resp slotsResponse
	if code := get(t, srv.URL+"/api/v1/availability/slots?date=2026-03-05&party_size=2", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(resp.Slots))
	}
	if resp.Slots[0].LocalStart != "18:00" || resp.Slots[0].TableID != "two" {
		t.Fatalf("unexpected first slot %+v", resp.Slots[0])
	}

	var closed slotsResponse
	get(t, srv.URL+"/api/v1/availability/slots?date=2026-03-02&party_size=2", &closed)
	if len(closed.Slots) != 0 || closed.ReasonCode != "closed_weekday" {
		t.Fatalf("expected closed weekday, got %+v", closed)
	}
}

func TestReservationsLifecycle(t *testing.T) {
	srv := newServer(t, venue())
	body := `{"date":"2026-03-05","time":"19:00","party_size":2,"guest_name":"Ada","phone":"+15550100"}`

	var first reservationResponse
	if code, raw := post(t, srv.URL+"/api/v1/reservations", body, &first); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", code, raw)
	}
	if first.TableID != "two" || first.Status != "booked" || first.ReservationID == "" {
		t.Fatalf("unexpected reservation %+v", first)
	}

	var second reservationResponse
	post(t, srv.URL+"/api/v1/reservations", body, &second)
	if second.TableID != "four" {
		t.Fatalf("expected the 4-top, got %+v", second)
	}

	var full checkResponse
	if code, _ := post(t, srv.URL+"/api/v1/reservations", body, &full); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if full.ReasonCode != "no_table_fit" {
		t.Fatalf("expected no_table_fit, got %+v", full)
	}

	if code, raw := post(t, srv.URL+"/api/v1/reservations", `{"date":"2026-03-05","time":"19:00","party_size":2}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without guest name, got %d %s", code, raw)
	}

	var cancelled reservationResponse
	cancelBody := `{"reservation_id":"` + first.ReservationID + `"}`
	if code, raw := post(t, srv.URL+"/api/v1/reservations/cancel", cancelBody, &cancelled); code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", code, raw)
	}
	if cancelled.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if code, _ := post(t, srv.URL+"/api/v1/reservations/cancel", cancelBody, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 on second cancel, got %d", code)
	}
	if code, _ := post(t, srv.URL+"/api/v1/reservations/cancel", `{"reservation_id":"1b4e28ba-2fa1-11d2-883f-0016d3cca427"}`, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}
