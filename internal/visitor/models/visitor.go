package models

import (
	"strings"
	"time"

	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

// Visitor is a traveler record. Visitors are created independently of any
// booking and linked afterwards through the registry's association operation;
// an unlinked visitor is a valid, retrievable record.
//
// Invariants:
//   - Name, LastName and DocumentID are non-empty
//   - BookingID is nil until the visitor is associated, and set at most once
//   - IsTitular marks the primary traveler; roster-level titular uniqueness is
//     enforced where bookings complete intake, not here (the registry is
//     booking-agnostic)
type Visitor struct {
	ID          id.VisitorID  `json:"id"`
	Name        string        `json:"name"`
	LastName    string        `json:"last_name"`
	DocumentID  string        `json:"document_id"`
	BirthDate   time.Time     `json:"birth_date"`
	Nationality string        `json:"nationality"`
	Phone       string        `json:"phone,omitempty"`
	Email       string        `json:"email,omitempty"`
	IsTitular   bool          `json:"is_titular"`
	BookingID   *id.BookingID `json:"booking_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewVisitor constructs a visitor, enforcing record-level invariants.
// Field-format validation (email shape, phone digits, age bounds) belongs to
// the intake validator; this guards only what must never be persisted empty.
func NewVisitor(visitorID id.VisitorID, params VisitorParams, now time.Time) (*Visitor, error) {
	name := strings.TrimSpace(params.Name)
	lastName := strings.TrimSpace(params.LastName)
	document := strings.TrimSpace(params.DocumentID)

	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "visitor name cannot be empty")
	}
	if lastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "visitor last name cannot be empty")
	}
	if document == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "visitor document id cannot be empty")
	}
	if params.BirthDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "visitor birth date is required")
	}

	return &Visitor{
		ID:          visitorID,
		Name:        name,
		LastName:    lastName,
		DocumentID:  document,
		BirthDate:   params.BirthDate,
		Nationality: strings.TrimSpace(params.Nationality),
		Phone:       strings.TrimSpace(params.Phone),
		Email:       strings.TrimSpace(params.Email),
		IsTitular:   params.IsTitular,
		CreatedAt:   now,
	}, nil
}

// VisitorParams carries the caller-supplied fields for visitor creation.
type VisitorParams struct {
	Name        string    `json:"name"`
	LastName    string    `json:"last_name"`
	DocumentID  string    `json:"document_id"`
	BirthDate   time.Time `json:"birth_date"`
	Nationality string    `json:"nationality"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	IsTitular   bool      `json:"is_titular"`
}

// IsLinked reports whether the visitor is attached to a booking.
func (v *Visitor) IsLinked() bool {
	return v.BookingID != nil
}

// CanLink checks the visitor may be attached to a booking.
func (v *Visitor) CanLink() error {
	if v.IsLinked() {
		return dErrors.New(dErrors.CodeInvariantViolation, "visitor is already linked to a booking")
	}
	return nil
}

// ApplyLink attaches the visitor to a booking. Call CanLink first.
func (v *Visitor) ApplyLink(bookingID id.BookingID) {
	v.BookingID = &bookingID
}
