package models

import dErrors "rumbo/pkg/domain-errors"

// BookingState is the lifecycle state of a booking. Wire format uses the
// upper-case names below; the legacy dashboard's Spanish names are accepted
// on input for compatibility.
type BookingState string

const (
	StatePending      BookingState = "PENDING"
	StatePaid         BookingState = "PAID"
	StateCancelled    BookingState = "CANCELLED"
	StateReprogrammed BookingState = "REPROGRAMMED"
)

// legacyStateNames maps the original platform's state names onto canonical ones.
var legacyStateNames = map[string]BookingState{
	"PENDIENTE":    StatePending,
	"PAGADA":       StatePaid,
	"CANCELADA":    StateCancelled,
	"REPROGRAMADA": StateReprogrammed,
}

// ParseBookingState maps a wire-format state name to its canonical state.
func ParseBookingState(raw string) (BookingState, error) {
	state := BookingState(raw)
	if state.IsValid() {
		return state, nil
	}
	if legacy, ok := legacyStateNames[raw]; ok {
		return legacy, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown booking state %q", raw)
}

// IsValid checks the state is one of the supported enum values.
func (s BookingState) IsValid() bool {
	switch s {
	case StatePending, StatePaid, StateCancelled, StateReprogrammed:
		return true
	}
	return false
}

func (s BookingState) String() string {
	return string(s)
}

// transitions is the full state machine. CANCELLED is terminal: no row here.
// REPROGRAMMED keeps the same rights as PAID (may pay again, cancel, or
// reprogram further, up to policy limits).
var transitions = map[BookingState][]BookingState{
	StatePending:      {StatePaid, StateCancelled},
	StatePaid:         {StateCancelled, StateReprogrammed},
	StateReprogrammed: {StatePaid, StateCancelled, StateReprogrammed},
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s BookingState) CanTransitionTo(next BookingState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves this state.
func (s BookingState) IsTerminal() bool {
	return len(transitions[s]) == 0
}
