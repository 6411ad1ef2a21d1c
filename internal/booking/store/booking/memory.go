package booking

import (
	"context"
	"sync"

	"rumbo/internal/booking/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
)

// InMemory is the development/test booking store.
//
// Execute holds the write lock across validate-then-mutate, which is what
// serializes concurrent state changes on the same booking (the aggregate is
// the unit of mutual exclusion).
type InMemory struct {
	mu       sync.RWMutex
	bookings map[id.BookingID]*models.Booking
}

func NewInMemory() *InMemory {
	return &InMemory{bookings: make(map[id.BookingID]*models.Booking)}
}

func (s *InMemory) Create(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return sentinel.ErrConflict
	}
	s.bookings[b.ID] = copyBooking(b)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, bookingID id.BookingID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyBooking(b), nil
}

func (s *InMemory) Exists(_ context.Context, bookingID id.BookingID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bookings[bookingID]
	return ok, nil
}

// Execute atomically runs validate then mutate against the stored booking,
// returning the post-mutation copy. A validate error aborts with no mutation
// and is returned verbatim so services can branch on it. Validate runs while
// the booking lock is held, so writes it performs are serialized with any
// concurrent Execute on the same store.
func (s *InMemory) Execute(
	ctx context.Context,
	bookingID id.BookingID,
	validate func(ctx context.Context, b *models.Booking) error,
	mutate func(*models.Booking),
) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(ctx, b); err != nil {
		return nil, err
	}
	mutate(b)
	b.Version++
	return copyBooking(b), nil
}

func copyBooking(b *models.Booking) *models.Booking {
	cp := *b
	cp.LineItems = append([]models.LineItem(nil), b.LineItems...)
	if b.TripEndDate != nil {
		end := *b.TripEndDate
		cp.TripEndDate = &end
	}
	if b.CouponRef != nil {
		ref := *b.CouponRef
		cp.CouponRef = &ref
	}
	return &cp
}
