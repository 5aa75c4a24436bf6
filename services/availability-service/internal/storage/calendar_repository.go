package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/tablekeeper/libs/db"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/hours"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

// CalendarRepository reads one business's weekly hours, exceptional closures and private events.
type CalendarRepository struct {
	pool       *db.Pool
	businessID string
}

func NewCalendarRepository(pool *db.Pool, businessID string) *CalendarRepository {
	return &CalendarRepository{pool: pool, businessID: businessID}
}

func (r *CalendarRepository) BaseHours(ctx context.Context, weekday time.Weekday) ([]civil.Range, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM opening_hours
		WHERE business_id = $1
		ORDER BY weekday, start_minute
	`, r.businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cal := hours.Calendar{}
	for rows.Next() {
		var wd, start, end int16
		if err := rows.Scan(&wd, &start, &end); err != nil {
			return nil, err
		}
		day := time.Weekday(wd)
		cal[day] = append(cal[day], civil.Range{Start: civil.Clock(start), End: civil.Clock(end)})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return weekdayHours(cal, weekday)
}

// weekdayHours checks the whole weekly schedule before returning one day of it.
func weekdayHours(cal hours.Calendar, weekday time.Weekday) ([]civil.Range, error) {
	if len(cal) == 0 {
		return nil, hours.ErrNotConfigured
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal[weekday], nil
}

func (r *CalendarRepository) ExceptionalClosure(ctx context.Context, date civil.Date) (*hours.Closure, error) {
	c := hours.Closure{Date: date}
	err := r.pool.QueryRow(ctx, `
		SELECT full_day, notice
		FROM exceptional_closures
		WHERE business_id = $1 AND closure_date = $2
	`, r.businessID, dateParam(date)).Scan(&c.FullDay, &c.Notice)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT start_minute, end_minute
		FROM exceptional_closure_ranges
		WHERE business_id = $1 AND closure_date = $2
		ORDER BY start_minute
	`, r.businessID, dateParam(date))
	if err != nil {
		return nil, err
	}
	c.Ranges, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (civil.Range, error) {
		var start, end int16
		err := row.Scan(&start, &end)
		return civil.Range{Start: civil.Clock(start), End: civil.Clock(end)}, err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CalendarRepository) ActivePrivateEvents(ctx context.Context, window model.Interval) ([]model.PrivateEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, COALESCE(table_id, ''), title, start_time, end_time, full_day, status
		FROM private_events
		WHERE business_id = $1
			AND status = 'active'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, r.businessID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PrivateEvent, error) {
		var ev model.PrivateEvent
		var status string
		err := row.Scan(&ev.ID, &ev.TableID, &ev.Title, &ev.Start, &ev.End, &ev.FullDay, &status)
		ev.Status = model.EventStatus(status)
		return ev, err
	})
}

// dateParam encodes a civil date for a DATE column.
func dateParam(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
