// Package intake implements the booking intake validation pipeline.
//
// Four stages run in strict order: titular, companions, trip details,
// consent. A stage accumulates every error it finds before halting, but a
// stage with errors blocks progression to the next, so a caller fixing the
// reported batch always moves forward. The validator is pure: no clock reads
// (the reference time is a parameter) and no side effects.
package intake

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"rumbo/internal/booking/models"
)

const (
	StageTitular    = "titular"
	StageCompanions = "companions"
	StageTrip       = "trip"
	StageConsent    = "consent"
)

const (
	minDocumentLen = 5
	minPhoneDigits = 7
	minTitularAge  = 18
	maxAge         = 120
	maxTripHorizon = 2 // years
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate runs the full pipeline against the intake. now anchors the age and
// trip-date checks. An empty result means the intake may proceed to booking
// creation.
func Validate(in models.Intake, now time.Time) []models.FieldError {
	stages := []func(models.Intake, time.Time) []models.FieldError{
		validateTitular,
		validateCompanions,
		validateTrip,
		validateConsent,
	}
	for _, stage := range stages {
		if errs := stage(in, now); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

func validateTitular(in models.Intake, now time.Time) []models.FieldError {
	var errs []models.FieldError
	add := func(field, message string) {
		errs = append(errs, models.FieldError{Stage: StageTitular, Field: field, Message: message})
	}

	t := in.Titular
	if strings.TrimSpace(t.Name) == "" {
		add("name", "name is required")
	}
	if strings.TrimSpace(t.LastName) == "" {
		add("last_name", "last name is required")
	}
	if len(strings.TrimSpace(t.DocumentID)) < minDocumentLen {
		add("document_id", fmt.Sprintf("document id must have at least %d characters", minDocumentLen))
	}
	if !emailPattern.MatchString(t.Email) {
		add("email", "a valid email is required")
	}
	if digitCount(t.Phone) < minPhoneDigits {
		add("phone", fmt.Sprintf("phone must have at least %d digits", minPhoneDigits))
	}
	switch {
	case t.BirthDate.IsZero():
		add("birth_date", "birth date is required")
	case ageAt(t.BirthDate, now) < minTitularAge:
		add("birth_date", fmt.Sprintf("titular must be at least %d years old", minTitularAge))
	case ageAt(t.BirthDate, now) > maxAge:
		add("birth_date", "birth date is implausible")
	}
	return errs
}

func validateCompanions(in models.Intake, now time.Time) []models.FieldError {
	var errs []models.FieldError
	for i, c := range in.Companions {
		add := func(field, message string) {
			errs = append(errs, models.FieldError{
				Stage:   StageCompanions,
				Field:   fmt.Sprintf("companions[%d].%s", i, field),
				Message: message,
			})
		}

		if strings.TrimSpace(c.Name) == "" {
			add("name", "name is required")
		}
		if strings.TrimSpace(c.LastName) == "" {
			add("last_name", "last name is required")
		}
		if strings.TrimSpace(c.DocumentID) == "" {
			add("document_id", "document id is required")
		}
		switch {
		case c.BirthDate.IsZero():
			add("birth_date", "birth date is required")
		case ageAt(c.BirthDate, now) > maxAge:
			add("birth_date", "birth date is implausible")
		}
		// Companions have no minimum age; contact data only when present.
		if c.Email != "" && !emailPattern.MatchString(c.Email) {
			add("email", "email format is invalid")
		}
		if c.Phone != "" && digitCount(c.Phone) < minPhoneDigits {
			add("phone", fmt.Sprintf("phone must have at least %d digits", minPhoneDigits))
		}
	}
	return errs
}

func validateTrip(in models.Intake, now time.Time) []models.FieldError {
	var errs []models.FieldError
	add := func(field, message string) {
		errs = append(errs, models.FieldError{Stage: StageTrip, Field: field, Message: message})
	}

	start := in.Trip.StartDate
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case start.IsZero():
		add("start_date", "trip start date is required")
	case start.Before(today):
		add("start_date", "trip start date cannot be in the past")
	case start.After(today.AddDate(maxTripHorizon, 0, 0)):
		add("start_date", fmt.Sprintf("trip start date cannot be more than %d years ahead", maxTripHorizon))
	}
	// Coupon and notes are unconstrained.
	return errs
}

func validateConsent(in models.Intake, _ time.Time) []models.FieldError {
	var errs []models.FieldError
	if !in.Consent.TermsAccepted {
		errs = append(errs, models.FieldError{Stage: StageConsent, Field: "terms_accepted", Message: "terms must be accepted"})
	}
	if !in.Consent.PrivacyAccepted {
		errs = append(errs, models.FieldError{Stage: StageConsent, Field: "privacy_accepted", Message: "privacy policy must be accepted"})
	}
	return errs
}

// ageAt computes full years between birth and now.
func ageAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	anniversary := birth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
