package handler

import (
	"time"

	"rumbo/internal/reprogram/models"
)

// RuleResponse is the HTTP representation of a reprogramming rule.
type RuleResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	AppliesTo    string    `json:"applies_to"`
	RuleType     string    `json:"rule_type"`
	NumericValue float64   `json:"numeric_value"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FromRule converts a domain rule to its HTTP response.
func FromRule(rule *models.Rule) *RuleResponse {
	return &RuleResponse{
		ID:           rule.ID.String(),
		Name:         rule.Name,
		Description:  rule.Description,
		AppliesTo:    string(rule.AppliesTo),
		RuleType:     string(rule.RuleType),
		NumericValue: rule.NumericValue,
		Active:       rule.Active,
		CreatedAt:    rule.CreatedAt,
		UpdatedAt:    rule.UpdatedAt,
	}
}

// RuleListResponse wraps the rule collection.
type RuleListResponse struct {
	Rules []*RuleResponse `json:"rules"`
}

// FromRules converts a rule slice to its HTTP response.
func FromRules(rules []*models.Rule) *RuleListResponse {
	out := &RuleListResponse{Rules: make([]*RuleResponse, 0, len(rules))}
	for _, rule := range rules {
		out.Rules = append(out.Rules, FromRule(rule))
	}
	return out
}

// GlobalConfigResponse is the HTTP representation of the global defaults.
type GlobalConfigResponse struct {
	MaxReprogramCount int       `json:"max_reprogram_count"`
	MinNoticeHours    int       `json:"min_notice_hours"`
	PenaltyPercent    float64   `json:"penalty_percent"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FromGlobalConfig converts the domain config to its HTTP response.
func FromGlobalConfig(cfg models.GlobalConfig) *GlobalConfigResponse {
	return &GlobalConfigResponse{
		MaxReprogramCount: cfg.MaxReprogramCount,
		MinNoticeHours:    cfg.MinNoticeHours,
		PenaltyPercent:    cfg.PenaltyPercent,
		UpdatedAt:         cfg.UpdatedAt,
	}
}
