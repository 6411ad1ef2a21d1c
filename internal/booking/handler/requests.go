package handler

import (
	"strings"
	"time"

	"rumbo/internal/booking/models"
	dErrors "rumbo/pkg/domain-errors"
)

// CreateBookingRequest is the HTTP request body for POST /bookings. It is
// the raw intake; staged validation happens in the service, so this only
// checks the envelope is present.
type CreateBookingRequest struct {
	models.Intake
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
// Shape-level checks only; field validation is the intake pipeline's job.
func (r *CreateBookingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Trip.Currency != "" {
		r.Trip.Currency = models.Currency(strings.ToUpper(string(r.Trip.Currency)))
	}
	return nil
}

// ReprogramRequest is the HTTP request body for POST /bookings/{id}/reprogram.
type ReprogramRequest struct {
	NewDate time.Time `json:"new_date"`
	Reason  string    `json:"reason,omitempty"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ReprogramRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.NewDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "new_date is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}

// CheckoutRequest is the HTTP request body for POST /bookings/{id}/checkout.
type CheckoutRequest struct {
	ReturnURL string `json:"return_url,omitempty"`
}
