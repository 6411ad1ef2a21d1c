package handler

import (
	"strings"

	"rumbo/internal/reprogram/models"
	dErrors "rumbo/pkg/domain-errors"
)

// RuleRequest is the HTTP request body for rule creation and update.
type RuleRequest struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	AppliesTo    string  `json:"applies_to"`
	RuleType     string  `json:"rule_type"`
	NumericValue float64 `json:"numeric_value"`

	// Parsed values (populated by Validate)
	parsedAudience models.Audience
	parsedType     models.RuleType
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RuleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 120 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 120 characters")
	}
	if r.NumericValue < 0 {
		return dErrors.New(dErrors.CodeValidation, "numeric_value cannot be negative")
	}

	audience, err := models.ParseAudience(r.AppliesTo)
	if err != nil {
		return err
	}
	r.parsedAudience = audience

	ruleType, err := models.ParseRuleType(r.RuleType)
	if err != nil {
		return err
	}
	r.parsedType = ruleType

	return nil
}

// Params returns the validated rule parameters.
func (r *RuleRequest) Params() models.RuleParams {
	return models.RuleParams{
		Name:         r.Name,
		Description:  strings.TrimSpace(r.Description),
		AppliesTo:    r.parsedAudience,
		RuleType:     r.parsedType,
		NumericValue: r.NumericValue,
	}
}

// SetActiveRequest is the HTTP request body for toggling a rule.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SetActiveRequest) Validate() error {
	if r == nil || r.Active == nil {
		return dErrors.New(dErrors.CodeValidation, "active is required")
	}
	return nil
}

// GlobalConfigRequest is the HTTP request body for updating the global
// reprogramming defaults.
type GlobalConfigRequest struct {
	MaxReprogramCount int     `json:"max_reprogram_count"`
	MinNoticeHours    int     `json:"min_notice_hours"`
	PenaltyPercent    float64 `json:"penalty_percent"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *GlobalConfigRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.MaxReprogramCount < 0 || r.MinNoticeHours < 0 || r.PenaltyPercent < 0 {
		return dErrors.New(dErrors.CodeValidation, "config values cannot be negative")
	}
	return nil
}

// Config returns the validated global configuration.
func (r *GlobalConfigRequest) Config() models.GlobalConfig {
	return models.GlobalConfig{
		MaxReprogramCount: r.MaxReprogramCount,
		MinNoticeHours:    r.MinNoticeHours,
		PenaltyPercent:    r.PenaltyPercent,
	}
}
