package history

import (
	"context"
	"sort"
	"sync"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
)

// InMemory is an append-only in-process history log. Entries are never
// updated or deleted once appended.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.BookingID][]*models.HistoryEntry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.BookingID][]*models.HistoryEntry)}
}

func (s *InMemory) Append(_ context.Context, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyEntry(entry)
	s.entries[entry.BookingID] = append(s.entries[entry.BookingID], cp)
	return nil
}

// ListByBooking returns a booking's attempts, most recent first. Unknown
// bookings yield an empty log, not an error.
func (s *InMemory) ListByBooking(_ context.Context, bookingID id.BookingID) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[bookingID]
	out := make([]*models.HistoryEntry, 0, len(stored))
	for _, entry := range stored {
		out = append(out, copyEntry(entry))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// CountAuthorized tallies the authorized reprogrammings recorded for a
// booking. Denied attempts do not count against any limit.
func (s *InMemory) CountAuthorized(_ context.Context, bookingID id.BookingID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entry := range s.entries[bookingID] {
		if entry.Authorized {
			count++
		}
	}
	return count, nil
}

func copyEntry(entry *models.HistoryEntry) *models.HistoryEntry {
	cp := *entry
	if entry.ViolatedRule != nil {
		rule := *entry.ViolatedRule
		cp.ViolatedRule = &rule
	}
	return &cp
}
