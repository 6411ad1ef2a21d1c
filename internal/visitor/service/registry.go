package service

import (
	"context"
	"errors"
	"log/slog"

	"rumbo/internal/visitor/models"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/sentinel"
	"rumbo/pkg/requestcontext"
)

// VisitorStore is the persistence contract the registry depends on.
type VisitorStore interface {
	Create(ctx context.Context, visitor *models.Visitor) error
	FindByID(ctx context.Context, visitorID id.VisitorID) (*models.Visitor, error)
	Link(ctx context.Context, visitorID id.VisitorID, bookingID id.BookingID) error
	ListByBooking(ctx context.Context, bookingID id.BookingID) ([]*models.Visitor, error)
}

// BookingChecker answers whether a booking exists. The registry stays
// booking-agnostic beyond this existence check.
type BookingChecker interface {
	Exists(ctx context.Context, bookingID id.BookingID) (bool, error)
}

// Registry creates visitor records and associates them with bookings.
//
// Creation and association are deliberately separate operations: a failed
// association never rolls back the visitor record. The platform favors
// completing the booking over roster atomicity; an unattached visitor stays
// retrievable and the association can be retried later.
type Registry struct {
	visitors VisitorStore
	bookings BookingChecker
	logger   *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(visitors VisitorStore, bookings BookingChecker, opts ...Option) *Registry {
	r := &Registry{visitors: visitors, bookings: bookings, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateVisitor persists a new visitor record and returns it.
func (r *Registry) CreateVisitor(ctx context.Context, params models.VisitorParams) (*models.Visitor, error) {
	visitor, err := models.NewVisitor(id.NewVisitorID(), params, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := r.visitors.Create(ctx, visitor); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create visitor")
	}
	return visitor, nil
}

// GetVisitor returns a visitor by id, linked or not.
func (r *Registry) GetVisitor(ctx context.Context, visitorID id.VisitorID) (*models.Visitor, error) {
	visitor, err := r.visitors.FindByID(ctx, visitorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "visitor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load visitor")
	}
	return visitor, nil
}

// AssociateVisitor attaches an existing visitor to an existing booking.
// On failure the visitor record persists unattached; callers log and move on
// rather than escalating, per the registry's partial-failure policy.
func (r *Registry) AssociateVisitor(ctx context.Context, bookingID id.BookingID, visitorID id.VisitorID) error {
	exists, err := r.bookings.Exists(ctx, bookingID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check booking")
	}
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "booking not found")
	}

	if err := r.visitors.Link(ctx, visitorID, bookingID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "visitor not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeConflict, "visitor is already linked to a booking")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link visitor")
		}
	}

	r.logger.InfoContext(ctx, "visitor associated",
		"request_id", requestcontext.RequestID(ctx),
		"booking_id", bookingID.String(),
		"visitor_id", visitorID.String(),
		"log_type", "audit",
	)
	return nil
}

// Roster returns the visitors linked to a booking, titular first.
func (r *Registry) Roster(ctx context.Context, bookingID id.BookingID) ([]*models.Visitor, error) {
	roster, err := r.visitors.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roster")
	}
	return roster, nil
}
