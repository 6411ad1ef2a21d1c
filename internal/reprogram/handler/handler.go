package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/httputil"
	"rumbo/pkg/requestcontext"
)

// Service defines the interface for rule administration operations.
type Service interface {
	CreateRule(ctx context.Context, params models.RuleParams) (*models.Rule, error)
	GetRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error)
	UpdateRule(ctx context.Context, ruleID id.RuleID, params models.RuleParams) (*models.Rule, error)
	SetRuleActive(ctx context.Context, ruleID id.RuleID, active bool) error
	ListRules(ctx context.Context) ([]*models.Rule, error)
	GlobalConfig(ctx context.Context) (models.GlobalConfig, error)
	UpdateGlobalConfig(ctx context.Context, cfg models.GlobalConfig) (models.GlobalConfig, error)
}

// Handler wires the admin rule endpoints to the reprogram service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a rule admin handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the admin endpoints on the router. The caller is expected
// to wrap the router in the admin-token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/reprogram/rules", h.HandleListRules)
	r.Post("/admin/reprogram/rules", h.HandleCreateRule)
	r.Get("/admin/reprogram/rules/{ruleID}", h.HandleGetRule)
	r.Put("/admin/reprogram/rules/{ruleID}", h.HandleUpdateRule)
	r.Patch("/admin/reprogram/rules/{ruleID}/active", h.HandleSetActive)
	r.Get("/admin/reprogram/config", h.HandleGetConfig)
	r.Put("/admin/reprogram/config", h.HandleUpdateConfig)
}

// HandleCreateRule handles POST /admin/reprogram/rules requests.
func (h *Handler) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rule, err := h.service.CreateRule(ctx, req.Params())
	if err != nil {
		h.logger.ErrorContext(ctx, "rule creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromRule(rule))
}

// HandleGetRule handles GET /admin/reprogram/rules/{ruleID} requests.
func (h *Handler) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rule, err := h.service.GetRule(ctx, ruleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRule(rule))
}

// HandleUpdateRule handles PUT /admin/reprogram/rules/{ruleID} requests.
func (h *Handler) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rule, err := h.service.UpdateRule(ctx, ruleID, req.Params())
	if err != nil {
		h.logger.ErrorContext(ctx, "rule update failed",
			"request_id", requestID,
			"rule_id", ruleID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRule(rule))
}

// HandleSetActive handles PATCH /admin/reprogram/rules/{ruleID}/active.
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SetActiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SetRuleActive(ctx, ruleID, *req.Active); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rule, err := h.service.GetRule(ctx, ruleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRule(rule))
}

// HandleListRules handles GET /admin/reprogram/rules requests.
func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRules(rules))
}

// HandleGetConfig handles GET /admin/reprogram/config requests.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GlobalConfig(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromGlobalConfig(cfg))
}

// HandleUpdateConfig handles PUT /admin/reprogram/config requests.
func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GlobalConfigRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cfg, err := h.service.UpdateGlobalConfig(ctx, req.Config())
	if err != nil {
		h.logger.ErrorContext(ctx, "global config update failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromGlobalConfig(cfg))
}
