package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rumbo/internal/booking/models"
	"rumbo/internal/booking/service"
	"rumbo/internal/gateway"
	rmodels "rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/httputil"
	"rumbo/pkg/requestcontext"
)

// Service defines the interface for booking lifecycle operations.
type Service interface {
	ValidateIntake(ctx context.Context, in models.Intake) []models.FieldError
	CreateBooking(ctx context.Context, in models.Intake) (*service.CreateResult, []models.FieldError, error)
	GetBooking(ctx context.Context, bookingID id.BookingID) (*service.CreateResult, error)
	ConfirmPayment(ctx context.Context, bookingID id.BookingID) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID id.BookingID) (*models.Booking, error)
	StartCheckout(ctx context.Context, bookingID id.BookingID, returnURL string) (*gateway.CheckoutSession, error)
	RequestReprogram(ctx context.Context, req service.ReprogramRequest) (*service.ReprogramResult, error)
	History(ctx context.Context, bookingID id.BookingID) ([]*rmodels.HistoryEntry, error)
}

// Handler wires booking endpoints to the lifecycle controller.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a booking handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts booking endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/bookings", h.HandleCreate)
	r.Post("/bookings/validate", h.HandleValidate)
	r.Get("/bookings/{bookingID}", h.HandleGet)
	r.Post("/bookings/{bookingID}/checkout", h.HandleCheckout)
	r.Post("/bookings/{bookingID}/payment/confirm", h.HandleConfirmPayment)
	r.Post("/bookings/{bookingID}/cancel", h.HandleCancel)
	r.Post("/bookings/{bookingID}/reprogram", h.HandleReprogram)
	r.Get("/bookings/{bookingID}/reprogram/history", h.HandleHistory)
}

func (h *Handler) bookingID(w http.ResponseWriter, r *http.Request) (id.BookingID, bool) {
	bookingID, err := id.ParseBookingID(chi.URLParam(r, "bookingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.BookingID{}, false
	}
	return bookingID, true
}

// HandleCreate handles POST /bookings requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBookingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, fieldErrs, err := h.service.CreateBooking(ctx, req.Intake)
	if err != nil {
		h.logger.ErrorContext(ctx, "booking creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if len(fieldErrs) > 0 {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, FromFieldErrors(fieldErrs))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromBooking(result.Booking, result.Roster, result.Warnings))
}

// HandleValidate handles POST /bookings/validate requests. It runs the
// staged intake pipeline without creating anything, so clients can check a
// form before submission.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBookingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if fieldErrs := h.service.ValidateIntake(ctx, req.Intake); len(fieldErrs) > 0 {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, FromFieldErrors(fieldErrs))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// HandleGet handles GET /bookings/{bookingID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.bookingID(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(r.Context(), bookingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBooking(result.Booking, result.Roster, nil))
}

// HandleCheckout handles POST /bookings/{bookingID}/checkout requests.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	bookingID, ok := h.bookingID(w, r)
	if !ok {
		return
	}

	// The body is optional; an absent return_url just means no redirect.
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	session, err := h.service.StartCheckout(ctx, bookingID, req.ReturnURL)
	if err != nil {
		h.logger.ErrorContext(ctx, "checkout failed",
			"request_id", requestID,
			"booking_id", bookingID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, session)
}

// HandleConfirmPayment handles POST /bookings/{bookingID}/payment/confirm.
func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.bookingID(w, r)
	if !ok {
		return
	}

	booking, err := h.service.ConfirmPayment(r.Context(), bookingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBooking(booking, nil, nil))
}

// HandleCancel handles POST /bookings/{bookingID}/cancel requests.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.bookingID(w, r)
	if !ok {
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), bookingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBooking(booking, nil, nil))
}

// HandleReprogram handles POST /bookings/{bookingID}/reprogram requests.
// A policy denial is a processed outcome, returned as 422 with the decision
// body rather than an error envelope.
func (h *Handler) HandleReprogram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	bookingID, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReprogramRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.RequestReprogram(ctx, service.ReprogramRequest{
		BookingID:      bookingID,
		NewDate:        req.NewDate,
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "reprogram request failed",
			"request_id", requestID,
			"booking_id", bookingID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Accepted {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, FromReprogramResult(result))
}

// HandleHistory handles GET /bookings/{bookingID}/reprogram/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := h.bookingID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), bookingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromHistory(bookingID.String(), entries))
}
