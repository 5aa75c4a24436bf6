package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

// Topic names double as event types; each event type has its own topic.
const (
	ReservationBooked    = "booking.reservation.booked.v1"
	ReservationCancelled = "booking.reservation.cancelled.v1"
	CalendarChanged      = "calendar.changed.v1"
)

// Event is the envelope written to outbox_events.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type ReservationPayload struct {
	ReservationID string `json:"reservation_id"`
	BusinessID    string `json:"business_id"`
	TableID       string `json:"table_id"`
	PartySize     int    `json:"party_size"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

// CalendarPayload announces an operator change to hours, closures or private events. An empty
// Dates list means every date may have changed.
type CalendarPayload struct {
	BusinessID string   `json:"business_id"`
	Dates      []string `json:"dates,omitempty"`
}

func ReservationEvent(eventType, businessID string, r model.Reservation) (Event, error) {
	payload, err := json.Marshal(ReservationPayload{
		ReservationID: r.ID,
		BusinessID:    businessID,
		TableID:       r.TableID,
		PartySize:     r.PartySize,
		Status:        string(r.Status),
		StartTime:     r.Start.UTC().Format(time.RFC3339),
		EndTime:       r.End.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "reservation",
		AggregateID:   r.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
