package service

import (
	"context"
	"errors"
	"log/slog"

	"rumbo/internal/booking/models"
	"rumbo/internal/events"
	"rumbo/internal/gateway"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/sentinel"
	"rumbo/pkg/requestcontext"
)

// errAlreadyCancelled marks the idempotent cancel path inside Execute so no
// mutation or event fires for a booking that is already cancelled.
var errAlreadyCancelled = errors.New("already cancelled")

// GetBooking returns the aggregate with its visitor roster.
func (c *Controller) GetBooking(ctx context.Context, bookingID id.BookingID) (*CreateResult, error) {
	booking, err := c.bookings.FindByID(ctx, bookingID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "booking not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load booking")
	}

	roster, err := c.visitors.Roster(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &CreateResult{Booking: booking, Roster: roster}, nil
}

// ConfirmPayment moves a PENDING or REPROGRAMMED booking to PAID. Called by
// the payment collaborator once the provider confirms the charge.
func (c *Controller) ConfirmPayment(ctx context.Context, bookingID id.BookingID) (*models.Booking, error) {
	now := requestcontext.Now(ctx)

	booking, err := c.bookings.Execute(ctx, bookingID,
		func(_ context.Context, b *models.Booking) error { return b.CanConfirmPayment() },
		func(b *models.Booking) { b.ApplyPayment(now) },
	)
	if err != nil {
		return nil, c.translateTransition(err, "payment confirmation")
	}

	c.metrics.IncrementTransition(string(models.StatePaid))
	c.auditTransition(ctx, "payment confirmed", booking)
	c.emit(ctx, events.Event{
		Type:      events.TypePaymentConfirmed,
		BookingID: booking.ID,
		ActorID:   requestcontext.Actor(ctx).ID,
		Detail:    map[string]any{"total": booking.Total.String()},
	})
	return booking, nil
}

// CancelBooking cancels a booking in any live state. Cancelling an already
// cancelled booking is a no-op success, so retried cancellations never
// surface spurious conflicts.
func (c *Controller) CancelBooking(ctx context.Context, bookingID id.BookingID) (*models.Booking, error) {
	now := requestcontext.Now(ctx)

	booking, err := c.bookings.Execute(ctx, bookingID,
		func(_ context.Context, b *models.Booking) error {
			if b.State == models.StateCancelled {
				return errAlreadyCancelled
			}
			return b.CanCancel()
		},
		func(b *models.Booking) { b.ApplyCancellation(now) },
	)
	if errors.Is(err, errAlreadyCancelled) {
		current, findErr := c.bookings.FindByID(ctx, bookingID)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load booking")
		}
		return current, nil
	}
	if err != nil {
		return nil, c.translateTransition(err, "cancellation")
	}

	c.metrics.IncrementTransition(string(models.StateCancelled))
	c.auditTransition(ctx, "booking cancelled", booking)
	c.emit(ctx, events.Event{
		Type:      events.TypeBookingCancelled,
		BookingID: booking.ID,
		ActorID:   requestcontext.Actor(ctx).ID,
	})
	return booking, nil
}

// StartCheckout opens a payment session with the external provider for a
// booking that still owes payment.
func (c *Controller) StartCheckout(ctx context.Context, bookingID id.BookingID, returnURL string) (*gateway.CheckoutSession, error) {
	if c.gateway == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "payment gateway is not configured")
	}

	booking, err := c.bookings.FindByID(ctx, bookingID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "booking not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load booking")
	}
	if err := booking.CanConfirmPayment(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidTransition, "booking is not payable")
	}

	return c.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		BookingID: booking.ID,
		Amount:    booking.Total,
		Currency:  string(booking.Currency),
		ReturnURL: returnURL,
	})
}

func (c *Controller) translateTransition(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "booking not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, op+" is not allowed in the booking's current state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
	}
}

func (c *Controller) auditTransition(ctx context.Context, msg string, booking *models.Booking) {
	c.logger.InfoContext(ctx, msg,
		slog.String("log_type", "audit"),
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.String("booking_id", booking.ID.String()),
		slog.String("state", string(booking.State)),
	)
}
