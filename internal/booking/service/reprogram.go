package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rumbo/internal/booking/models"
	"rumbo/internal/events"
	rmodels "rumbo/internal/reprogram/models"
	"rumbo/internal/reprogram/policy"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/sentinel"
	"rumbo/pkg/requestcontext"
)

// idempotencyTTL bounds how long a reprogram request key stays reserved.
const idempotencyTTL = 24 * time.Hour

// errPolicyDenied marks a denial inside Execute's validate step so the
// booking is left untouched while the decision still reaches the caller.
var errPolicyDenied = errors.New("policy denied")

// ReprogramRequest is one date-change attempt against a booking.
type ReprogramRequest struct {
	BookingID id.BookingID
	NewDate   time.Time
	Reason    string
	// IdempotencyKey, when set, rejects a second submission of the same
	// request inside the TTL window.
	IdempotencyKey string
}

// ReprogramResult reports the attempt's outcome. Accepted=false with a nil
// error is a policy denial: the request was processed and recorded, the
// change just was not allowed.
type ReprogramResult struct {
	Accepted bool
	Reason   string
	// ViolatedRule identifies the rule behind a denial, when one applies.
	ViolatedRule *id.RuleID
	// Penalty is the discount percentage to apply downstream on acceptance.
	Penalty float64
	Booking *models.Booking
	EntryID id.EntryID
}

// RequestReprogram authorizes, applies and records a date change. Every
// evaluated attempt lands in the history log, denials included; attempts
// rejected before evaluation (bad state, unknown booking, duplicate key) do
// not. Both the policy check and the authorized entry's append run inside
// the store's Execute guard: the decision reads the history, the mutation
// extends it, and the two commit together, so racing requests on one booking
// cannot both consume the last allowed reprogramming.
func (c *Controller) RequestReprogram(ctx context.Context, req ReprogramRequest) (*ReprogramResult, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "acting user is required")
	}
	if req.NewDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "new date is required")
	}
	now := requestcontext.Now(ctx)

	if err := c.reserveKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	}

	var (
		decision     policy.Decision
		previousDate time.Time
		entry        *rmodels.HistoryEntry
	)
	booking, err := c.bookings.Execute(ctx, req.BookingID,
		func(execCtx context.Context, b *models.Booking) error {
			if err := b.CanReprogram(); err != nil {
				return err
			}
			previousDate = b.TripStartDate

			start := time.Now()
			var authErr error
			decision, authErr = c.policy.Authorize(execCtx, policy.Request{
				BookingID:     b.ID,
				TripDate:      b.TripStartDate,
				RequestedDate: req.NewDate,
				ActorRole:     actor.Role,
				Now:           now,
			})
			c.metrics.ObservePolicyLatency(time.Since(start))
			if authErr != nil {
				return authErr
			}
			if !decision.Accepted {
				return errPolicyDenied
			}
			var buildErr error
			entry, buildErr = c.buildAttemptEntry(req, actor, previousDate, decision, now)
			if buildErr != nil {
				return buildErr
			}
			return c.history.Append(execCtx, entry)
		},
		func(b *models.Booking) { b.ApplyReprogram(req.NewDate, now) },
	)

	switch {
	case errors.Is(err, errPolicyDenied):
		return c.recordDenial(ctx, req, actor, previousDate, decision, now)
	case errors.Is(err, sentinel.ErrNotFound):
		c.releaseKey(ctx, req.IdempotencyKey)
		return nil, dErrors.New(dErrors.CodeNotFound, "booking not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		c.releaseKey(ctx, req.IdempotencyKey)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "reprogramming policy cannot be evaluated right now")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		c.releaseKey(ctx, req.IdempotencyKey)
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidTransition, "booking cannot be reprogrammed in its current state")
	case err != nil:
		c.releaseKey(ctx, req.IdempotencyKey)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reprogramming failed")
	}

	c.auditAttempt(ctx, req, actor, "authorized", decision.Reason)
	c.metrics.IncrementReprogramDecision("authorized")
	c.metrics.IncrementTransition(string(models.StateReprogrammed))
	c.emit(ctx, events.Event{
		Type:      events.TypeBookingReprogrammed,
		BookingID: req.BookingID,
		ActorID:   actor.ID,
		Detail: map[string]any{
			"previous_date": previousDate,
			"new_date":      req.NewDate,
			"penalty":       decision.Penalty,
		},
	})
	return &ReprogramResult{
		Accepted:     true,
		Reason:       decision.Reason,
		ViolatedRule: decision.ViolatedRule,
		Penalty:      decision.Penalty,
		Booking:      booking,
		EntryID:      entry.ID,
	}, nil
}

func (c *Controller) buildAttemptEntry(
	req ReprogramRequest,
	actor requestcontext.ActorInfo,
	previousDate time.Time,
	decision policy.Decision,
	now time.Time,
) (*rmodels.HistoryEntry, error) {
	return rmodels.NewHistoryEntry(id.NewEntryID(), rmodels.HistoryParams{
		BookingID:    req.BookingID,
		PreviousDate: previousDate,
		NewDate:      req.NewDate,
		Reason:       req.Reason,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Authorized:   decision.Accepted,
		ViolatedRule: decision.ViolatedRule,
		Penalty:      decision.Penalty,
	}, now)
}

// recordDenial appends the refused attempt outside the booking guard. Denied
// entries never count toward the reprogramming limit, so they need no
// serialization with the state change they did not make.
func (c *Controller) recordDenial(
	ctx context.Context,
	req ReprogramRequest,
	actor requestcontext.ActorInfo,
	previousDate time.Time,
	decision policy.Decision,
	now time.Time,
) (*ReprogramResult, error) {
	entry, err := c.buildAttemptEntry(req, actor, previousDate, decision, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build history entry")
	}
	if err := c.history.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record reprogramming attempt")
	}

	c.auditAttempt(ctx, req, actor, "denied", decision.Reason)
	c.metrics.IncrementReprogramDecision("denied")
	return &ReprogramResult{
		Accepted:     false,
		Reason:       decision.Reason,
		ViolatedRule: decision.ViolatedRule,
		Penalty:      decision.Penalty,
		EntryID:      entry.ID,
	}, nil
}

func (c *Controller) auditAttempt(ctx context.Context, req ReprogramRequest, actor requestcontext.ActorInfo, outcome, reason string) {
	c.logger.InfoContext(ctx, "reprogramming attempt recorded",
		slog.String("log_type", "audit"),
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.String("booking_id", req.BookingID.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("outcome", outcome),
		slog.String("reason", reason),
	)
}

// History lists a booking's reprogramming attempts, newest first.
func (c *Controller) History(ctx context.Context, bookingID id.BookingID) ([]*rmodels.HistoryEntry, error) {
	exists, err := c.bookings.Exists(ctx, bookingID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check booking")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "booking not found")
	}

	entries, err := c.history.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list history")
	}
	return entries, nil
}

func (c *Controller) reserveKey(ctx context.Context, key string) error {
	if c.idempotency == nil || key == "" {
		return nil
	}
	err := c.idempotency.Reserve(ctx, key, idempotencyTTL)
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "a request with this idempotency key was already processed")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve idempotency key")
	}
	return nil
}

// releaseKey frees the key when the attempt never reached a decision, so a
// corrected retry is not locked out for the full TTL.
func (c *Controller) releaseKey(ctx context.Context, key string) {
	if c.idempotency == nil || key == "" {
		return
	}
	if err := c.idempotency.Release(ctx, key); err != nil {
		c.logger.Warn("failed to release idempotency key", slog.Any("error", err))
	}
}
