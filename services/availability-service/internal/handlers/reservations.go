package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

type createReservationRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	PartySize int    `json:"party_size"`
	GuestName string `json:"guest_name"`
	Phone     string `json:"phone"`
}

type reservationResponse struct {
	ReservationID string `json:"reservation_id"`
	TableID       string `json:"table_id"`
	PartySize     int    `json:"party_size"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Attempts      int    `json:"attempts,omitempty"`
}

type cancelReservationRequest struct {
	ReservationID string `json:"reservation_id"`
}

// Create books a table. A request the engine turns down is answered with 422 and the reason.
func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	out, err := h.booker.Book(r.Context(), booking.Request{
		Date:      strings.TrimSpace(req.Date),
		Time:      strings.TrimSpace(req.Time),
		PartySize: req.PartySize,
		GuestName: req.GuestName,
		Phone:     req.Phone,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out.Reservation == nil {
		writeJSON(w, http.StatusUnprocessableEntity, h.checkBody(req.Date, req.Time, req.PartySize, out.Result))
		return
	}
	resp := reservationBody(*out.Reservation)
	resp.Attempts = out.Attempts
	writeJSON(w, http.StatusCreated, resp)
}

func (h *AvailabilityHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	res, err := h.booker.Cancel(r.Context(), req.ReservationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationBody(res))
}

func reservationBody(res model.Reservation) reservationResponse {
	return reservationResponse{
		ReservationID: res.ID,
		TableID:       res.TableID,
		PartySize:     res.PartySize,
		Status:        string(res.Status),
		StartTime:     res.Start.UTC().Format(time.RFC3339),
		EndTime:       res.End.UTC().Format(time.RFC3339),
	}
}
