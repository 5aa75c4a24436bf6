package cache

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
)

type DaySource interface {
	Day(ctx context.Context, localDate string, partySize int) (availability.Day, error)
}

// Lister answers slot listings from the cache and fills it on a miss. Redis failures fall back
// to the engine. A listing computed while the date was invalidated is returned but not cached.
type Lister struct {
	source DaySource
	cache  *SlotCache
	logger *slog.Logger
}

// NewLister accepts a nil cache, in which case every call goes to source.
func NewLister(source DaySource, cache *SlotCache, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lister{source: source, cache: cache, logger: logger}
}

func (l *Lister) List(ctx context.Context, localDate string, partySize int) (Listing, error) {
	date, err := civil.ParseDate(localDate)
	if l.cache == nil || err != nil {
		return l.compute(ctx, localDate, partySize)
	}

	cached, ok, err := l.cache.Get(ctx, date, partySize)
	if err != nil {
		l.logger.Warn("slot cache read failed", "date", localDate, "err", err)
		return l.compute(ctx, localDate, partySize)
	}
	if ok {
		return cached, nil
	}

	gen, genErr := l.cache.Generation(ctx, date)
	listing, err := l.compute(ctx, localDate, partySize)
	if err != nil {
		return Listing{}, err
	}
	if genErr != nil {
		l.logger.Warn("slot cache generation read failed", "date", localDate, "err", genErr)
		return listing, nil
	}
	stored, err := l.cache.PutIfCurrent(ctx, date, gen, listing)
	if err != nil {
		l.logger.Warn("slot cache write failed", "date", localDate, "err", err)
	} else if !stored {
		l.logger.Debug("slot cache write skipped after invalidation", "date", localDate)
	}
	return listing, nil
}

func (l *Lister) compute(ctx context.Context, localDate string, partySize int) (Listing, error) {
	day, err := l.source.Day(ctx, localDate, partySize)
	if err != nil {
		return Listing{}, err
	}
	listing := Listing{Date: day.Date.String(), PartySize: partySize, Slots: Entries(day.Slots)}
	if day.Reason != nil {
		listing.ReasonCode = string(day.Reason.Code())
		listing.ReasonMessage = day.Reason.Message()
	}
	return listing, nil
}
