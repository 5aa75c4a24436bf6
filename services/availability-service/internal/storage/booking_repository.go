package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/tablekeeper/libs/db"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/outbox"
)

type BookingRepository struct {
	pool       *db.Pool
	outbox     *outbox.Repository
	businessID string
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository, businessID string) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo, businessID: businessID}
}

func (r *BookingRepository) Tables(ctx context.Context, minCapacity int) ([]model.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, capacity
		FROM dining_tables
		WHERE business_id = $1 AND active AND capacity >= $2
		ORDER BY capacity ASC, id ASC
	`, r.businessID, minCapacity)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Table, error) {
		var t model.Table
		err := row.Scan(&t.ID, &t.Capacity)
		return t, err
	})
}

const reservationColumns = `id::text, table_id, start_time, end_time, party_size, status, guest_name, phone, created_at`

func (r *BookingRepository) ReservationsOverlapping(ctx context.Context, window model.Interval) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE business_id = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, r.businessID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Reservation, error) {
		return scanReservation(row)
	})
}

// InsertReservation relies on reservations_no_overlap to reject a table that was taken after the
// availability check; that case comes back as model.ErrSlotTaken.
func (r *BookingRepository) InsertReservation(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO reservations (id, business_id, table_id, start_time, end_time, party_size, status, guest_name, phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`, res.ID, r.businessID, res.TableID, res.Start, res.End, res.PartySize, string(res.Status), res.GuestName, res.Phone).Scan(&res.CreatedAt)
		if IsConflict(err) {
			return model.ErrSlotTaken
		}
		if err != nil {
			return err
		}
		return r.writeEvent(ctx, tx, outbox.ReservationBooked, res)
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *BookingRepository) CancelReservation(ctx context.Context, id string) (model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status FROM reservations WHERE id = $1 AND business_id = $2 FOR UPDATE
	`, id, r.businessID).Scan(&status)
	if IsNotFound(err) {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	if model.ReservationStatus(status) == model.ReservationCancelled {
		return model.Reservation{}, model.ErrAlreadyCancelled
	}

	res, err := scanReservation(tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = 'cancelled', cancelled_at = now()
		WHERE id = $1 AND business_id = $2
		RETURNING `+reservationColumns, id, r.businessID))
	if err != nil {
		return model.Reservation{}, err
	}

	if err := r.writeEvent(ctx, tx, outbox.ReservationCancelled, res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *BookingRepository) writeEvent(ctx context.Context, tx pgx.Tx, eventType string, res model.Reservation) error {
	evt, err := outbox.ReservationEvent(eventType, r.businessID, res)
	if err != nil {
		return fmt.Errorf("build %s: %w", eventType, err)
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var res model.Reservation
	var status string
	err := row.Scan(&res.ID, &res.TableID, &res.Start, &res.End, &res.PartySize, &status, &res.GuestName, &res.Phone, &res.CreatedAt)
	res.Status = model.ReservationStatus(status)
	return res, err
}
