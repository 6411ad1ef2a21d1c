package models

import (
	"time"

	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

// HistoryEntry is one immutable record in a booking's reprogramming audit
// log. Denied attempts are recorded too, with Authorized=false and the rule
// that drove the denial.
type HistoryEntry struct {
	ID           id.EntryID   `json:"id"`
	BookingID    id.BookingID `json:"booking_id"`
	PreviousDate time.Time    `json:"previous_date"`
	NewDate      time.Time    `json:"new_date"`
	Reason       string       `json:"reason,omitempty"`
	ActorID      id.ActorID   `json:"actor_id"`
	ActorRole    id.Role      `json:"actor_role"`
	Authorized   bool         `json:"authorized"`
	// ViolatedRule is set only on denials attributable to a specific rule.
	ViolatedRule *id.RuleID `json:"violated_rule,omitempty"`
	// Penalty is the discount percentage annotated on authorized changes.
	Penalty   float64   `json:"penalty,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHistoryEntry builds an audit record for a reprogramming attempt.
func NewHistoryEntry(entryID id.EntryID, params HistoryParams, now time.Time) (*HistoryEntry, error) {
	if params.BookingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "history entry requires a booking id")
	}
	if params.NewDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "history entry requires the requested date")
	}
	if params.ActorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "history entry requires the acting user")
	}
	return &HistoryEntry{
		ID:           entryID,
		BookingID:    params.BookingID,
		PreviousDate: params.PreviousDate,
		NewDate:      params.NewDate,
		Reason:       params.Reason,
		ActorID:      params.ActorID,
		ActorRole:    params.ActorRole,
		Authorized:   params.Authorized,
		ViolatedRule: params.ViolatedRule,
		Penalty:      params.Penalty,
		Timestamp:    now,
	}, nil
}

// HistoryParams carries the fields recorded for one reprogramming attempt.
type HistoryParams struct {
	BookingID    id.BookingID
	PreviousDate time.Time
	NewDate      time.Time
	Reason       string
	ActorID      id.ActorID
	ActorRole    id.Role
	Authorized   bool
	ViolatedRule *id.RuleID
	Penalty      float64
}
