// Package domain holds shared identifier and role types used across bounded
// contexts. IDs are distinct types over uuid.UUID so the compiler rejects
// cross-aggregate mixups.
package domain

import (
	"github.com/google/uuid"

	dErrors "rumbo/pkg/domain-errors"
)

type (
	// BookingID identifies a booking aggregate.
	BookingID uuid.UUID
	// VisitorID identifies a visitor (traveler) record.
	VisitorID uuid.UUID
	// RuleID identifies a reprogramming rule.
	RuleID uuid.UUID
	// EntryID identifies a reprogramming history entry.
	EntryID uuid.UUID
	// ActorID identifies the party performing an operation (user, admin,
	// operator). Kept opaque: the auth collaborator owns its meaning.
	ActorID uuid.UUID
)

func (id BookingID) String() string { return uuid.UUID(id).String() }
func (id VisitorID) String() string { return uuid.UUID(id).String() }
func (id RuleID) String() string    { return uuid.UUID(id).String() }
func (id EntryID) String() string   { return uuid.UUID(id).String() }
func (id ActorID) String() string   { return uuid.UUID(id).String() }

func (id BookingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VisitorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewBookingID returns a fresh random booking id.
func NewBookingID() BookingID { return BookingID(uuid.New()) }

// NewVisitorID returns a fresh random visitor id.
func NewVisitorID() VisitorID { return VisitorID(uuid.New()) }

// NewRuleID returns a fresh random rule id.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

// NewEntryID returns a fresh random history entry id.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. All Parse helpers funnel through here so every ID type
// validates identically at trust boundaries.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be empty", kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s id format", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be the nil uuid", kind)
	}
	return parsed, nil
}

// ParseBookingID parses and validates a booking id from its string form.
func ParseBookingID(raw string) (BookingID, error) {
	parsed, err := parseUUID(raw, "booking")
	if err != nil {
		return BookingID{}, err
	}
	return BookingID(parsed), nil
}

// ParseVisitorID parses and validates a visitor id from its string form.
func ParseVisitorID(raw string) (VisitorID, error) {
	parsed, err := parseUUID(raw, "visitor")
	if err != nil {
		return VisitorID{}, err
	}
	return VisitorID(parsed), nil
}

// ParseRuleID parses and validates a rule id from its string form.
func ParseRuleID(raw string) (RuleID, error) {
	parsed, err := parseUUID(raw, "rule")
	if err != nil {
		return RuleID{}, err
	}
	return RuleID(parsed), nil
}

// ParseEntryID parses and validates a history entry id from its string form.
func ParseEntryID(raw string) (EntryID, error) {
	parsed, err := parseUUID(raw, "entry")
	if err != nil {
		return EntryID{}, err
	}
	return EntryID(parsed), nil
}

// ParseActorID parses and validates an actor id from its string form.
func ParseActorID(raw string) (ActorID, error) {
	parsed, err := parseUUID(raw, "actor")
	if err != nil {
		return ActorID{}, err
	}
	return ActorID(parsed), nil
}
