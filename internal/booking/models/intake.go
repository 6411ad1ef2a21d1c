package models

import "time"

// Intake is the raw booking request as submitted by the client layer, before
// validation. Field names mirror the public JSON contract.
type Intake struct {
	Titular    TravelerInput   `json:"titular"`
	Companions []TravelerInput `json:"companions,omitempty"`
	Trip       TripInput       `json:"trip"`
	Consent    ConsentInput    `json:"consent"`
}

// TravelerInput is one traveler on the intake form, titular or companion.
type TravelerInput struct {
	Name        string    `json:"name"`
	LastName    string    `json:"last_name"`
	DocumentID  string    `json:"document_id"`
	BirthDate   time.Time `json:"birth_date"`
	Nationality string    `json:"nationality"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// TripInput carries the trip details stage of the intake.
type TripInput struct {
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	LineItems []LineItem `json:"line_items"`
	Currency  Currency   `json:"currency"`
	CouponRef *int64     `json:"coupon_ref,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// ConsentInput carries the consent stage of the intake. Both flags must be
// true for the intake to proceed.
type ConsentInput struct {
	TermsAccepted   bool `json:"terms_accepted"`
	PrivacyAccepted bool `json:"privacy_accepted"`
}

// FieldError is one field-scoped validation failure, tagged with the pipeline
// stage that produced it.
type FieldError struct {
	Stage   string `json:"stage"`
	Field   string `json:"field"`
	Message string `json:"message"`
}
