package store

import (
	"context"
	"sort"
	"sync"

	"rumbo/internal/visitor/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
)

// InMemory is the development/test visitor store: a map guarded by a RWMutex.
// Returned visitors are copies so callers cannot mutate store state.
type InMemory struct {
	mu       sync.RWMutex
	visitors map[id.VisitorID]*models.Visitor
}

func NewInMemory() *InMemory {
	return &InMemory{visitors: make(map[id.VisitorID]*models.Visitor)}
}

func (s *InMemory) Create(_ context.Context, visitor *models.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.visitors[visitor.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *visitor
	s.visitors[visitor.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, visitorID id.VisitorID) (*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visitor, ok := s.visitors[visitorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *visitor
	return &cp, nil
}

// Link attaches a visitor to a booking. The mutex is held across the
// read-check-write so concurrent link attempts cannot double-attach.
func (s *InMemory) Link(_ context.Context, visitorID id.VisitorID, bookingID id.BookingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	visitor, ok := s.visitors[visitorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := visitor.CanLink(); err != nil {
		return sentinel.ErrInvalidState
	}
	visitor.ApplyLink(bookingID)
	return nil
}

func (s *InMemory) ListByBooking(_ context.Context, bookingID id.BookingID) ([]*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roster []*models.Visitor
	for _, visitor := range s.visitors {
		if visitor.BookingID != nil && *visitor.BookingID == bookingID {
			cp := *visitor
			roster = append(roster, &cp)
		}
	}
	// Titular first, then by creation time, so rosters render stably.
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].IsTitular != roster[j].IsTitular {
			return roster[i].IsTitular
		}
		return roster[i].CreatedAt.Before(roster[j].CreatedAt)
	})
	return roster, nil
}
