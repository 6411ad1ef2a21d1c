package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rumbo/internal/visitor/models"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/httputil"
	"rumbo/pkg/requestcontext"
)

// Service defines the interface for visitor registry operations.
type Service interface {
	CreateVisitor(ctx context.Context, params models.VisitorParams) (*models.Visitor, error)
	GetVisitor(ctx context.Context, visitorID id.VisitorID) (*models.Visitor, error)
	AssociateVisitor(ctx context.Context, bookingID id.BookingID, visitorID id.VisitorID) error
	Roster(ctx context.Context, bookingID id.BookingID) ([]*models.Visitor, error)
}

// Handler wires visitor endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a visitor handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts visitor endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/visitors", h.HandleCreate)
	r.Get("/visitors/{visitorID}", h.HandleGet)
	r.Put("/bookings/{bookingID}/visitors/{visitorID}", h.HandleAssociate)
	r.Get("/bookings/{bookingID}/visitors", h.HandleRoster)
}

// CreateVisitorRequest is the HTTP request body for POST /visitors.
type CreateVisitorRequest struct {
	Name        string    `json:"name"`
	LastName    string    `json:"last_name"`
	DocumentID  string    `json:"document_id"`
	BirthDate   time.Time `json:"birth_date"`
	Nationality string    `json:"nationality"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	IsTitular   bool      `json:"is_titular"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateVisitorRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	r.LastName = strings.TrimSpace(r.LastName)
	r.DocumentID = strings.TrimSpace(r.DocumentID)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.LastName == "" {
		return dErrors.New(dErrors.CodeValidation, "last_name is required")
	}
	if r.DocumentID == "" {
		return dErrors.New(dErrors.CodeValidation, "document_id is required")
	}
	if r.BirthDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "birth_date is required")
	}
	return nil
}

// Params returns the validated visitor parameters.
func (r *CreateVisitorRequest) Params() models.VisitorParams {
	return models.VisitorParams{
		Name:        r.Name,
		LastName:    r.LastName,
		DocumentID:  r.DocumentID,
		BirthDate:   r.BirthDate,
		Nationality: strings.TrimSpace(r.Nationality),
		Phone:       strings.TrimSpace(r.Phone),
		Email:       strings.TrimSpace(r.Email),
		IsTitular:   r.IsTitular,
	}
}

// HandleCreate handles POST /visitors requests. The visitor is created
// standalone; linking to a booking is a separate call.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateVisitorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	visitor, err := h.service.CreateVisitor(ctx, req.Params())
	if err != nil {
		h.logger.ErrorContext(ctx, "visitor creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, visitor)
}

// HandleGet handles GET /visitors/{visitorID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	visitorID, err := id.ParseVisitorID(chi.URLParam(r, "visitorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	visitor, err := h.service.GetVisitor(r.Context(), visitorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, visitor)
}

// HandleAssociate handles PUT /bookings/{bookingID}/visitors/{visitorID}.
func (h *Handler) HandleAssociate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bookingID, err := id.ParseBookingID(chi.URLParam(r, "bookingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	visitorID, err := id.ParseVisitorID(chi.URLParam(r, "visitorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.AssociateVisitor(ctx, bookingID, visitorID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	visitor, err := h.service.GetVisitor(ctx, visitorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, visitor)
}

// HandleRoster handles GET /bookings/{bookingID}/visitors requests.
func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	bookingID, err := id.ParseBookingID(chi.URLParam(r, "bookingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	roster, err := h.service.Roster(r.Context(), bookingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"booking_id": bookingID.String(),
		"visitors":   roster,
	})
}
