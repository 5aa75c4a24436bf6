package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

type Checker interface {
	CheckAvailability(ctx context.Context, localDate, localTime string, partySize int) (availability.Result, error)
}

type Lister interface {
	List(ctx context.Context, localDate string, partySize int) (cache.Listing, error)
}

type Booker interface {
	Book(ctx context.Context, req booking.Request) (booking.Outcome, error)
	Cancel(ctx context.Context, id string) (model.Reservation, error)
}

type AvailabilityHandler struct {
	checker Checker
	lister  Lister
	booker  Booker
	zone    civil.Zone
	logger  *slog.Logger
}

func NewAvailabilityHandler(checker Checker, lister Lister, booker Booker, zone civil.Zone, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{checker: checker, lister: lister, booker: booker, zone: zone, logger: logger}
}

// Register mounts the routes on mux.
func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/availability/check", h.Check)
	mux.HandleFunc("/api/v1/availability/slots", h.Slots)
	mux.HandleFunc("/api/v1/reservations", h.Create)
	mux.HandleFunc("/api/v1/reservations/cancel", h.Cancel)
}

type tableItem struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
}

type checkResponse struct {
	Available     bool       `json:"available"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	PartySize     int        `json:"party_size"`
	Table         *tableItem `json:"table,omitempty"`
	StartTime     string     `json:"start_time,omitempty"`
	EndTime       string     `json:"end_time,omitempty"`
	ReasonCode    string     `json:"reason_code,omitempty"`
	ReasonMessage string     `json:"reason_message,omitempty"`
}

type slotItem struct {
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	LocalStart string `json:"local_start"`
	TableID    string `json:"table_id"`
}

type slotsResponse struct {
	Date          string     `json:"date"`
	PartySize     int        `json:"party_size"`
	Slots         []slotItem `json:"slots"`
	ReasonCode    string     `json:"reason_code,omitempty"`
	ReasonMessage string     `json:"reason_message,omitempty"`
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	clock := strings.TrimSpace(q.Get("time"))
	partySize, ok := parsePartySize(w, q.Get("party_size"))
	if !ok {
		return
	}

	res, err := h.checker.CheckAvailability(r.Context(), date, clock, partySize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.checkBody(date, clock, partySize, res))
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	partySize, ok := parsePartySize(w, q.Get("party_size"))
	if !ok {
		return
	}

	listing, err := h.lister.List(r.Context(), date, partySize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := slotsResponse{
		Date:          listing.Date,
		PartySize:     partySize,
		Slots:         make([]slotItem, 0, len(listing.Slots)),
		ReasonCode:    listing.ReasonCode,
		ReasonMessage: listing.ReasonMessage,
	}
	for _, s := range listing.Slots {
		resp.Slots = append(resp.Slots, slotItem{
			StartTime:  s.Start.UTC().Format(time.RFC3339),
			EndTime:    s.End.UTC().Format(time.RFC3339),
			LocalStart: civil.At(s.Start, h.zone).Clock.String(),
			TableID:    s.TableID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) checkBody(date, clock string, partySize int, res availability.Result) checkResponse {
	resp := checkResponse{
		Available:     res.Available,
		Date:          date,
		Time:          clock,
		PartySize:     partySize,
		ReasonCode:    string(res.ReasonCode()),
		ReasonMessage: res.ReasonMessage(),
	}
	if res.Table != nil {
		resp.Table = &tableItem{ID: res.Table.ID, Capacity: res.Table.Capacity}
		resp.StartTime = res.Interval.Start.UTC().Format(time.RFC3339)
		resp.EndTime = res.Interval.End.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case availability.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case availability.IsConfiguration(err):
		h.logger.Error("calendar misconfigured", "err", err)
		http.Error(w, "calendar not configured", http.StatusInternalServerError)
	case errors.Is(err, booking.ErrContended):
		http.Error(w, "table no longer available, please try again", http.StatusConflict)
	case errors.Is(err, model.ErrReservationNotFound):
		http.Error(w, "reservation not found", http.StatusNotFound)
	case errors.Is(err, model.ErrAlreadyCancelled):
		http.Error(w, "reservation already cancelled", http.StatusConflict)
	case availability.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("availability store unavailable", "err", err)
		http.Error(w, "availability temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parsePartySize(w http.ResponseWriter, raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, "invalid party_size", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
