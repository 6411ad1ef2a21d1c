package service

import (
	"context"
	"fmt"
	"log/slog"

	"rumbo/internal/booking/intake"
	"rumbo/internal/booking/models"
	"rumbo/internal/events"
	vmodels "rumbo/internal/visitor/models"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/requestcontext"
)

// CreateResult is the outcome of booking creation. Warnings carry visitor
// association failures that did not abort the booking.
type CreateResult struct {
	Booking  *models.Booking
	Roster   []*vmodels.Visitor
	Warnings []string
}

// ValidateIntake runs the staged intake pipeline without side effects, so
// the client layer can surface per-stage errors before submitting.
func (c *Controller) ValidateIntake(ctx context.Context, in models.Intake) []models.FieldError {
	fieldErrs := intake.Validate(in, requestcontext.Now(ctx))
	if len(fieldErrs) > 0 {
		c.metrics.IncrementIntakeFailure(fieldErrs[0].Stage)
	}
	return fieldErrs
}

// CreateBooking validates the intake, persists a PENDING booking and builds
// its visitor roster. Visitor association is deliberately non-atomic with
// booking creation: a failed association leaves the visitor record intact
// and unattached, reported as a warning rather than an error. The booking
// itself is never rolled back once stored.
func (c *Controller) CreateBooking(ctx context.Context, in models.Intake) (*CreateResult, []models.FieldError, error) {
	now := requestcontext.Now(ctx)
	requestID := requestcontext.RequestID(ctx)

	if fieldErrs := c.ValidateIntake(ctx, in); len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}

	booking, err := models.NewBooking(id.NewBookingID(), models.BookingParams{
		TripStartDate: in.Trip.StartDate,
		TripEndDate:   in.Trip.EndDate,
		LineItems:     in.Trip.LineItems,
		Currency:      in.Trip.Currency,
		CouponRef:     in.Trip.CouponRef,
		Notes:         in.Trip.Notes,
	}, now)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid booking")
	}

	if err := c.bookings.Create(ctx, booking); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store booking")
	}

	result := &CreateResult{Booking: booking}
	c.attachTraveler(ctx, result, in.Titular, true)
	for _, companion := range in.Companions {
		c.attachTraveler(ctx, result, companion, false)
	}

	c.metrics.IncrementCreated(string(booking.Currency))
	c.logger.InfoContext(ctx, "booking created",
		slog.String("log_type", "audit"),
		slog.String("request_id", requestID),
		slog.String("booking_id", booking.ID.String()),
		slog.String("total", booking.Total.String()),
		slog.Int("roster_size", len(result.Roster)),
		slog.Int("warnings", len(result.Warnings)),
	)
	c.emit(ctx, events.Event{
		Type:      events.TypeBookingCreated,
		BookingID: booking.ID,
		ActorID:   requestcontext.Actor(ctx).ID,
		Detail: map[string]any{
			"trip_start_date": booking.TripStartDate,
			"total":           booking.Total.String(),
			"currency":        string(booking.Currency),
		},
	})

	return result, nil, nil
}

// attachTraveler creates the visitor and links it to the booking, recording
// a warning instead of failing when either step cannot complete.
func (c *Controller) attachTraveler(ctx context.Context, result *CreateResult, traveler models.TravelerInput, titular bool) {
	visitor, err := c.visitors.CreateVisitor(ctx, vmodels.VisitorParams{
		Name:        traveler.Name,
		LastName:    traveler.LastName,
		DocumentID:  traveler.DocumentID,
		BirthDate:   traveler.BirthDate,
		Nationality: traveler.Nationality,
		Phone:       traveler.Phone,
		Email:       traveler.Email,
		IsTitular:   titular,
	})
	if err != nil {
		c.warnAssociation(ctx, result, result.Booking, traveler.DocumentID, "visitor creation failed", err)
		return
	}

	if err := c.visitors.AssociateVisitor(ctx, result.Booking.ID, visitor.ID); err != nil {
		// The visitor record survives unattached; see package doc.
		c.warnAssociation(ctx, result, result.Booking, traveler.DocumentID, "visitor association failed", err)
		return
	}

	visitor.BookingID = &result.Booking.ID
	result.Roster = append(result.Roster, visitor)
}

func (c *Controller) warnAssociation(ctx context.Context, result *CreateResult, booking *models.Booking, document, msg string, err error) {
	c.logger.WarnContext(ctx, msg,
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.String("booking_id", booking.ID.String()),
		slog.String("document_id", document),
		slog.Any("error", err),
	)
	result.Warnings = append(result.Warnings, fmt.Sprintf("%s for document %s", msg, document))
}
