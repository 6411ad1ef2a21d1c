package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"rumbo/internal/booking/models"
	"rumbo/internal/booking/service"
	rmodels "rumbo/internal/reprogram/models"
	vmodels "rumbo/internal/visitor/models"
)

// BookingResponse is the HTTP representation of a booking aggregate.
type BookingResponse struct {
	ID            string             `json:"id"`
	State         string             `json:"state"`
	TripStartDate time.Time          `json:"trip_start_date"`
	TripEndDate   *time.Time         `json:"trip_end_date,omitempty"`
	LineItems     []models.LineItem  `json:"line_items"`
	Total         decimal.Decimal    `json:"total"`
	Currency      string             `json:"currency"`
	Notes         string             `json:"notes,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Roster        []*vmodels.Visitor `json:"roster,omitempty"`
	Warnings      []string           `json:"warnings,omitempty"`
}

// FromBooking converts a booking (plus optional roster and warnings) to its
// HTTP response.
func FromBooking(b *models.Booking, roster []*vmodels.Visitor, warnings []string) *BookingResponse {
	return &BookingResponse{
		ID:            b.ID.String(),
		State:         string(b.State),
		TripStartDate: b.TripStartDate,
		TripEndDate:   b.TripEndDate,
		LineItems:     b.LineItems,
		Total:         b.Total,
		Currency:      string(b.Currency),
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		Roster:        roster,
		Warnings:      warnings,
	}
}

// ValidationResponse carries staged intake failures.
type ValidationResponse struct {
	Error  string              `json:"error"`
	Stage  string              `json:"stage"`
	Fields []models.FieldError `json:"fields"`
}

// FromFieldErrors converts intake failures to their HTTP response. All
// errors share a stage because validation halts between stages.
func FromFieldErrors(fieldErrs []models.FieldError) *ValidationResponse {
	return &ValidationResponse{
		Error:  "validation_error",
		Stage:  fieldErrs[0].Stage,
		Fields: fieldErrs,
	}
}

// ReprogramResponse is the HTTP representation of a reprogramming outcome.
type ReprogramResponse struct {
	Accepted     bool             `json:"accepted"`
	Reason       string           `json:"reason,omitempty"`
	ViolatedRule string           `json:"violated_rule,omitempty"`
	Penalty      float64          `json:"penalty,omitempty"`
	EntryID      string           `json:"entry_id"`
	Booking      *BookingResponse `json:"booking,omitempty"`
}

// FromReprogramResult converts a service result to its HTTP response.
func FromReprogramResult(result *service.ReprogramResult) *ReprogramResponse {
	resp := &ReprogramResponse{
		Accepted: result.Accepted,
		Reason:   result.Reason,
		Penalty:  result.Penalty,
		EntryID:  result.EntryID.String(),
	}
	if result.ViolatedRule != nil {
		resp.ViolatedRule = result.ViolatedRule.String()
	}
	if result.Booking != nil {
		resp.Booking = FromBooking(result.Booking, nil, nil)
	}
	return resp
}

// HistoryEntryResponse is one reprogramming attempt in the audit listing.
type HistoryEntryResponse struct {
	ID           string    `json:"id"`
	PreviousDate time.Time `json:"previous_date"`
	NewDate      time.Time `json:"new_date"`
	Reason       string    `json:"reason,omitempty"`
	ActorID      string    `json:"actor_id"`
	ActorRole    string    `json:"actor_role"`
	Authorized   bool      `json:"authorized"`
	ViolatedRule string    `json:"violated_rule,omitempty"`
	Penalty      float64   `json:"penalty,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// HistoryResponse wraps a booking's attempt log, newest first.
type HistoryResponse struct {
	BookingID string                  `json:"booking_id"`
	Entries   []*HistoryEntryResponse `json:"entries"`
}

// FromHistory converts history entries to their HTTP response.
func FromHistory(bookingID string, entries []*rmodels.HistoryEntry) *HistoryResponse {
	resp := &HistoryResponse{BookingID: bookingID, Entries: make([]*HistoryEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		item := &HistoryEntryResponse{
			ID:           entry.ID.String(),
			PreviousDate: entry.PreviousDate,
			NewDate:      entry.NewDate,
			Reason:       entry.Reason,
			ActorID:      entry.ActorID.String(),
			ActorRole:    string(entry.ActorRole),
			Authorized:   entry.Authorized,
			Penalty:      entry.Penalty,
			Timestamp:    entry.Timestamp,
		}
		if entry.ViolatedRule != nil {
			item.ViolatedRule = entry.ViolatedRule.String()
		}
		resp.Entries = append(resp.Entries, item)
	}
	return resp
}
