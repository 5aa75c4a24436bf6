package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/outbox"
)

// Topics are the events that change a slot listing.
var Topics = []string{outbox.ReservationBooked, outbox.ReservationCancelled, outbox.CalendarChanged}

type Invalidator interface {
	InvalidateDate(ctx context.Context, date civil.Date) error
	InvalidateAll(ctx context.Context) error
}

// InvalidationHandler drops cached listings for the dates an event touches. Events of other
// businesses and malformed payloads are skipped.
func InvalidationHandler(inv Invalidator, zone civil.Zone, businessID string, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		switch msg.Topic {
		case outbox.ReservationBooked, outbox.ReservationCancelled:
			var p outbox.ReservationPayload
			if err := json.Unmarshal(msg.Value, &p); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if p.BusinessID != businessID {
				return nil
			}
			start, errStart := time.Parse(time.RFC3339, p.StartTime)
			end, errEnd := time.Parse(time.RFC3339, p.EndTime)
			if err := errors.Join(errStart, errEnd); err != nil {
				logger.Error("invalid reservation times", "err", err, "reservation_id", p.ReservationID)
				return nil
			}
			first, _ := civil.ToCivil(start, zone)
			last, _ := civil.ToCivil(end, zone)
			for d := first; !d.After(last); d = d.AddDays(1) {
				if err := inv.InvalidateDate(ctx, d); err != nil {
					return err
				}
			}
			return nil

		case outbox.CalendarChanged:
			var p outbox.CalendarPayload
			if err := json.Unmarshal(msg.Value, &p); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if p.BusinessID != businessID {
				return nil
			}
			if len(p.Dates) == 0 {
				return inv.InvalidateAll(ctx)
			}
			for _, raw := range p.Dates {
				d, err := civil.ParseDate(raw)
				if err != nil {
					logger.Warn("invalid date in calendar event", "date", raw)
					continue
				}
				if err := inv.InvalidateDate(ctx, d); err != nil {
					return err
				}
			}
			return nil
		}
		return nil
	}
}
