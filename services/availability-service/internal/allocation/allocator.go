package allocation

import (
	"sort"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/model"
)

// Allocate returns the smallest table seating partySize that has no blocking reservation and no
// active event overlapping iv. Tables of equal capacity are tried in ascending id order.
//
// The answer is read-only: the caller still has to insert the reservation under the storage
// exclusion constraint.
func Allocate(iv model.Interval, partySize int, tables []model.Table, reservations []model.Reservation, events []model.PrivateEvent) (model.Table, bool) {
	for _, t := range Candidates(partySize, tables) {
		if Free(t.ID, iv, reservations, events) {
			return t, true
		}
	}
	return model.Table{}, false
}

// Candidates returns the tables with capacity >= partySize in allocation order.
func Candidates(partySize int, tables []model.Table) []model.Table {
	out := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if t.Capacity >= partySize && t.Capacity >= 1 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Capacity != out[j].Capacity {
			return out[i].Capacity < out[j].Capacity
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Free reports whether tableID has no conflicting reservation or event during iv.
func Free(tableID string, iv model.Interval, reservations []model.Reservation, events []model.PrivateEvent) bool {
	for _, r := range reservations {
		if r.TableID == tableID && r.Blocks() && iv.Overlaps(r.Interval()) {
			return false
		}
	}
	for _, ev := range events {
		if ev.Active() && ev.AppliesTo(tableID) && iv.Overlaps(ev.Interval()) {
			return false
		}
	}
	return true
}
