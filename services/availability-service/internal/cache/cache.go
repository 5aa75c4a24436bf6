package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/civil"
	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

// Listing is the cached answer for one (date, party size).
type Listing struct {
	Date          string      `json:"date"`
	PartySize     int         `json:"party_size"`
	Slots         []SlotEntry `json:"slots"`
	ReasonCode    string      `json:"reason_code,omitempty"`
	ReasonMessage string      `json:"reason_message,omitempty"`
}

type SlotEntry struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	TableID string    `json:"table_id"`
}

func Entries(slots []model.Slot) []SlotEntry {
	out := make([]SlotEntry, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotEntry{Start: s.Start.UTC(), End: s.End.UTC(), TableID: s.TableID})
	}
	return out
}

// SlotCache stores listings in one Redis hash per (business, date), one field per party size, so a
// booking or calendar change drops the whole date with a single DEL.
//
// Every invalidation also bumps a generation counter (one per business, one per date). A listing
// computed from the engine is only written back if neither counter moved while it was computed.
type SlotCache struct {
	rdb        redis.UniversalClient
	businessID string
	ttl        time.Duration
}

// Generation is the pair of invalidation counters a listing was computed under.
type Generation struct {
	Business int64
	Date     int64
}

// dateGenerationTTL bounds how long per-date counters outlive the listings they guard.
const dateGenerationTTL = 48 * time.Hour

func NewSlotCache(rdb redis.UniversalClient, businessID string, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SlotCache{rdb: rdb, businessID: businessID, ttl: ttl}
}

func (c *SlotCache) key(date civil.Date) string {
	return "slots:" + c.businessID + ":" + date.String()
}

// Generation counters live outside the slots: prefix so InvalidateAll's SCAN never resets them.
func (c *SlotCache) generationKeys(date civil.Date) (string, string) {
	return c.businessGenerationKey(), c.businessGenerationKey() + ":" + date.String()
}

func (c *SlotCache) businessGenerationKey() string {
	return "slotgen:" + c.businessID
}

func (c *SlotCache) Get(ctx context.Context, date civil.Date, partySize int) (Listing, bool, error) {
	raw, err := c.rdb.HGet(ctx, c.key(date), strconv.Itoa(partySize)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Listing{}, false, nil
	}
	if err != nil {
		return Listing{}, false, err
	}
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return Listing{}, false, err
	}
	return l, true, nil
}

// Generation reads the counters to hand to PutIfCurrent once the listing is computed.
func (c *SlotCache) Generation(ctx context.Context, date civil.Date) (Generation, error) {
	biz, day := c.generationKeys(date)
	return readGeneration(ctx, c.rdb, biz, day)
}

// Put stores l unconditionally.
func (c *SlotCache) Put(ctx context.Context, date civil.Date, l Listing) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		c.write(ctx, pipe, date, l.PartySize, raw)
		return nil
	})
	return err
}

// PutIfCurrent stores l only if no invalidation ran since gen was read. It reports whether the
// listing was written.
func (c *SlotCache) PutIfCurrent(ctx context.Context, date civil.Date, gen Generation, l Listing) (bool, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return false, err
	}
	biz, day := c.generationKeys(date)
	stored := false
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, biz, day)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			c.write(ctx, pipe, date, l.PartySize, raw)
			return nil
		})
		stored = err == nil
		return err
	}, biz, day)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

func (c *SlotCache) write(ctx context.Context, pipe redis.Pipeliner, date civil.Date, partySize int, raw []byte) {
	key := c.key(date)
	pipe.HSet(ctx, key, strconv.Itoa(partySize), raw)
	pipe.Expire(ctx, key, c.ttl)
}

func (c *SlotCache) InvalidateDate(ctx context.Context, date civil.Date) error {
	_, day := c.generationKeys(date)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, day)
		pipe.Expire(ctx, day, dateGenerationTTL)
		pipe.Del(ctx, c.key(date))
		return nil
	})
	return err
}

// InvalidateAll drops every cached date of the business.
func (c *SlotCache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.businessGenerationKey()).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, "slots:"+c.businessID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *SlotCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func readGeneration(ctx context.Context, rdb multiGetter, biz, day string) (Generation, error) {
	vals, err := rdb.MGet(ctx, biz, day).Result()
	if err != nil {
		return Generation{}, err
	}
	var counters [2]int64
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Generation{}, err
		}
		counters[i] = n
	}
	return Generation{Business: counters[0], Date: counters[1]}, nil
}
