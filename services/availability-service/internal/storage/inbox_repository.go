package storage

import (
	"context"

	"github.com/md-rashed-zaman/tablekeeper/libs/db"
)

// InboxRepository remembers consumed event ids so redelivered messages are handled once.
type InboxRepository struct {
	pool *db.Pool
}

func NewInboxRepository(pool *db.Pool) *InboxRepository {
	return &InboxRepository{pool: pool}
}

// Record returns false when eventID was already recorded.
func (r *InboxRepository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if IsDuplicate(err) {
		return false, nil
	}
	return false, err
}
