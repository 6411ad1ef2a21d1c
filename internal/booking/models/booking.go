package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

// Currency is the enumerated currency code for booking totals.
type Currency string

const (
	CurrencyLocal   Currency = "PEN"
	CurrencyForeign Currency = "USD"
)

// IsValid checks the currency is one of the supported enum values.
func (c Currency) IsValid() bool {
	return c == CurrencyLocal || c == CurrencyForeign
}

// LineItem is one priced service on a booking.
//
// Invariants: Quantity >= 1, UnitPrice >= 0. Line-item pricing is
// authoritative; the booking total is derived, never independently set.
type LineItem struct {
	ServiceID   int64           `json:"service_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ServiceDate time.Time       `json:"service_date"`
}

// Subtotal returns UnitPrice × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) validate() error {
	if li.ServiceID <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "line item service id is required")
	}
	if li.Quantity < 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "line item quantity must be at least 1")
	}
	if li.UnitPrice.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "line item unit price cannot be negative")
	}
	return nil
}

// Booking is the reservation aggregate: state, trip dates, priced line items
// and the (externally associated) visitor roster.
//
// Invariants:
//   - State transitions happen only through the lifecycle service using the
//     CanX/ApplyX guards below; no other layer writes State
//   - Total equals the sum of line-item subtotals at creation time
//   - Bookings are never physically deleted; cancellation is a state write
type Booking struct {
	ID            id.BookingID `json:"id"`
	State         BookingState `json:"state"`
	TripStartDate time.Time    `json:"trip_start_date"`
	// TripEndDate is optional at creation.
	TripEndDate *time.Time      `json:"trip_end_date,omitempty"`
	LineItems   []LineItem      `json:"line_items"`
	Total       decimal.Decimal `json:"total"`
	Currency    Currency        `json:"currency"`
	// CouponRef optionally references a discount coupon by number.
	CouponRef *int64 `json:"coupon_ref,omitempty"`
	Notes     string `json:"notes,omitempty"`
	// Version supports optimistic concurrency in stores that need it.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBooking constructs a PENDING booking, deriving Total from line items.
func NewBooking(bookingID id.BookingID, params BookingParams, now time.Time) (*Booking, error) {
	if params.TripStartDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trip start date is required")
	}
	if params.TripEndDate != nil && params.TripEndDate.Before(params.TripStartDate) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trip end date cannot precede start date")
	}
	if !params.Currency.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unsupported currency %q", params.Currency)
	}
	if len(params.LineItems) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "booking requires at least one line item")
	}

	total := decimal.Zero
	for _, item := range params.LineItems {
		if err := item.validate(); err != nil {
			return nil, err
		}
		total = total.Add(item.Subtotal())
	}

	return &Booking{
		ID:            bookingID,
		State:         StatePending,
		TripStartDate: params.TripStartDate,
		TripEndDate:   params.TripEndDate,
		LineItems:     params.LineItems,
		Total:         total,
		Currency:      params.Currency,
		CouponRef:     params.CouponRef,
		Notes:         params.Notes,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// BookingParams carries the fields needed to construct a booking aggregate.
// Assembled by the lifecycle service from a validated intake.
type BookingParams struct {
	TripStartDate time.Time
	TripEndDate   *time.Time
	LineItems     []LineItem
	Currency      Currency
	CouponRef     *int64
	Notes         string
}

// CanConfirmPayment checks the payment transition is allowed.
func (b *Booking) CanConfirmPayment() error {
	if !b.State.CanTransitionTo(StatePaid) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot confirm payment from state %s", b.State)
	}
	return nil
}

// ApplyPayment transitions the booking to PAID. Call CanConfirmPayment first.
func (b *Booking) ApplyPayment(now time.Time) {
	b.State = StatePaid
	b.UpdatedAt = now
}

// CanCancel checks the cancellation transition is allowed. Cancelling an
// already-CANCELLED booking is handled as an idempotent no-op by the service,
// not here: this guard refuses nothing else, since every live state may cancel.
func (b *Booking) CanCancel() error {
	if b.State == StateCancelled {
		return dErrors.New(dErrors.CodeInvariantViolation, "booking is already cancelled")
	}
	if !b.State.CanTransitionTo(StateCancelled) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot cancel from state %s", b.State)
	}
	return nil
}

// ApplyCancellation transitions the booking to CANCELLED (a logical delete:
// the row and its history remain queryable).
func (b *Booking) ApplyCancellation(now time.Time) {
	b.State = StateCancelled
	b.UpdatedAt = now
}

// CanReprogram checks the date-change transition is allowed. Policy evaluation
// is the lifecycle service's concern; this guards only the state machine.
func (b *Booking) CanReprogram() error {
	if !b.State.CanTransitionTo(StateReprogrammed) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot reprogram from state %s", b.State)
	}
	return nil
}

// ApplyReprogram moves the trip to newDate and transitions to REPROGRAMMED.
// When the booking has an end date, the trip length is preserved.
func (b *Booking) ApplyReprogram(newDate time.Time, now time.Time) {
	if b.TripEndDate != nil {
		tripLen := b.TripEndDate.Sub(b.TripStartDate)
		end := newDate.Add(tripLen)
		b.TripEndDate = &end
	}
	b.TripStartDate = newDate
	b.State = StateReprogrammed
	b.UpdatedAt = now
}
