// Package events publishes booking lifecycle events to an external stream.
// Emission is fire-and-forget from the caller's point of view: a full buffer
// or a sink outage never fails the booking operation that produced the event.
package events

import (
	"time"

	id "rumbo/pkg/domain"
)

// Type enumerates the lifecycle events the platform emits.
type Type string

const (
	TypeBookingCreated      Type = "booking_created"
	TypePaymentConfirmed    Type = "payment_confirmed"
	TypeBookingCancelled    Type = "booking_cancelled"
	TypeBookingReprogrammed Type = "booking_reprogrammed"
)

// Event is one lifecycle fact about a booking.
type Event struct {
	Type      Type         `json:"type"`
	BookingID id.BookingID `json:"booking_id"`
	ActorID   id.ActorID   `json:"actor_id,omitempty"`
	// Detail carries event-specific fields (dates, amounts, reasons).
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
