package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

// ErrContended is returned when every attempt found a table and lost it to a concurrent booking.
var ErrContended = errors.New("table kept being taken by concurrent bookings")

type Checker interface {
	CheckAvailability(ctx context.Context, localDate, localTime string, partySize int) (availability.Result, error)
}

type Store interface {
	// InsertReservation fails with model.ErrSlotTaken when the table is already held for an
	// overlapping interval. Implementations publish the booked event in the same transaction.
	InsertReservation(ctx context.Context, r model.Reservation) (model.Reservation, error)
	CancelReservation(ctx context.Context, id string) (model.Reservation, error)
}

// Invalidator drops cached slot listings for a date.
type Invalidator interface {
	InvalidateDate(ctx context.Context, date civil.Date) error
}

type Request struct {
	Date      string
	Time      string
	PartySize int
	GuestName string
	Phone     string
}

type Outcome struct {
	// Result is the decision of the last attempt.
	Result      availability.Result
	Reservation *model.Reservation
	Attempts    int
}

type Committer struct {
	checker     Checker
	store       Store
	zone        civil.Zone
	maxAttempts int
	invalidator Invalidator
	logger      *slog.Logger
}

func NewCommitter(checker Checker, store Store, zone civil.Zone, maxAttempts int, invalidator Invalidator, logger *slog.Logger) *Committer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{
		checker:     checker,
		store:       store,
		zone:        zone,
		maxAttempts: maxAttempts,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Book asks the checker for a table and inserts the reservation. When the insert loses the race
// for that table the checker is asked again, since its first answer is no longer valid.
func (c *Committer) Book(ctx context.Context, req Request) (Outcome, error) {
	req.GuestName = strings.TrimSpace(req.GuestName)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.GuestName == "" {
		return Outcome{}, &availability.ValidationError{Field: "guest_name", Err: errors.New("required")}
	}

	var last availability.Result
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, err := c.checker.CheckAvailability(ctx, req.Date, req.Time, req.PartySize)
		if err != nil {
			return Outcome{Attempts: attempt}, err
		}
		if !res.Available {
			return Outcome{Result: res, Attempts: attempt}, nil
		}
		last = res

		saved, err := c.store.InsertReservation(ctx, model.Reservation{
			ID:        uuid.NewString(),
			TableID:   res.Table.ID,
			Start:     res.Interval.Start,
			End:       res.Interval.End,
			PartySize: req.PartySize,
			Status:    model.ReservationBooked,
			GuestName: req.GuestName,
			Phone:     req.Phone,
		})
		if errors.Is(err, model.ErrSlotTaken) {
			c.logger.Info("table taken before commit; rechecking",
				"table_id", res.Table.ID, "date", req.Date, "time", req.Time, "attempt", attempt)
			continue
		}
		if err != nil {
			return Outcome{Result: res, Attempts: attempt}, &availability.TransientError{Op: "insert reservation", Err: err}
		}

		c.invalidate(ctx, saved)
		c.logger.Info("reservation booked", "reservation_id", saved.ID, "table_id", saved.TableID, "party_size", saved.PartySize)
		return Outcome{Result: res, Reservation: &saved, Attempts: attempt}, nil
	}
	return Outcome{Result: last, Attempts: c.maxAttempts}, fmt.Errorf("%w after %d attempts", ErrContended, c.maxAttempts)
}

func (c *Committer) Cancel(ctx context.Context, id string) (model.Reservation, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return model.Reservation{}, &availability.ValidationError{Field: "reservation_id", Err: err}
	}
	r, err := c.store.CancelReservation(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrReservationNotFound) || errors.Is(err, model.ErrAlreadyCancelled) {
			return model.Reservation{}, err
		}
		return model.Reservation{}, &availability.TransientError{Op: "cancel reservation", Err: err}
	}
	c.invalidate(ctx, r)
	c.logger.Info("reservation cancelled", "reservation_id", r.ID, "table_id", r.TableID)
	return r, nil
}

// invalidate drops the cached listings of every date the reservation touches. Failures are
// only logged.
func (c *Committer) invalidate(ctx context.Context, r model.Reservation) {
	if c.invalidator == nil {
		return
	}
	first, _ := civil.ToCivil(r.Start, c.zone)
	last, _ := civil.ToCivil(r.End, c.zone)
	for d := first; !d.After(last); d = d.AddDays(1) {
		if err := c.invalidator.InvalidateDate(ctx, d); err != nil {
			c.logger.Warn("slot cache invalidation failed", "date", d.String(), "err", err)
		}
	}
}
