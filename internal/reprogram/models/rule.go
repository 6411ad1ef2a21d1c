package models

import (
	"strings"
	"time"

	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
)

// Audience is who a rule applies to: a concrete role or everyone.
type Audience string

const (
	AudienceClient   Audience = "CLIENT"
	AudienceAdmin    Audience = "ADMIN"
	AudienceOperator Audience = "OPERATOR"
	AudienceAll      Audience = "ALL"
)

// ParseAudience maps a wire-format audience to its canonical value.
func ParseAudience(raw string) (Audience, error) {
	a := Audience(strings.ToUpper(strings.TrimSpace(raw)))
	if !a.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown audience %q", raw)
	}
	return a, nil
}

// IsValid checks the audience is one of the supported enum values.
func (a Audience) IsValid() bool {
	switch a {
	case AudienceClient, AudienceAdmin, AudienceOperator, AudienceAll:
		return true
	}
	return false
}

// Matches reports whether a rule with this audience applies to the role.
func (a Audience) Matches(role id.Role) bool {
	return a == AudienceAll || string(a) == string(role)
}

// RuleType classifies what a rule's numeric value means.
type RuleType string

const (
	// RuleMaxReprogramCount: NumericValue is the maximum number of
	// authorized reprogrammings per booking.
	RuleMaxReprogramCount RuleType = "MAX_REPROGRAM_COUNT"
	// RulePenaltyDiscount: NumericValue is a percentage applied to any
	// associated refund or fee. Never denies on its own.
	RulePenaltyDiscount RuleType = "PENALTY_DISCOUNT"
	// RuleMinNoticeTime: NumericValue is the minimum hours of notice before
	// the current trip date.
	RuleMinNoticeTime RuleType = "MIN_NOTICE_TIME"
	// RuleAdvanceNoticeTime: NumericValue is the required hours of advance
	// notice. Evaluated identically to MIN_NOTICE_TIME.
	RuleAdvanceNoticeTime RuleType = "ADVANCE_NOTICE_TIME"
	// RuleOther is a reserved extension point. Evaluation ignores it rather
	// than failing, so unknown future rules never break authorization.
	RuleOther RuleType = "OTHER"
)

// ParseRuleType maps a wire-format rule type to its canonical value.
func ParseRuleType(raw string) (RuleType, error) {
	t := RuleType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown rule type %q", raw)
	}
	return t, nil
}

// IsValid checks the rule type is one of the supported enum values.
func (t RuleType) IsValid() bool {
	switch t {
	case RuleMaxReprogramCount, RulePenaltyDiscount, RuleMinNoticeTime, RuleAdvanceNoticeTime, RuleOther:
		return true
	}
	return false
}

// Rule is one configurable reprogramming policy rule. Rules are administered
// independently of bookings and read-only during policy evaluation.
type Rule struct {
	ID          id.RuleID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	AppliesTo   Audience  `json:"applies_to"`
	RuleType    RuleType  `json:"rule_type"`
	// NumericValue is rule-type-dependent: a count, a percentage, or a
	// duration in hours.
	NumericValue float64   `json:"numeric_value"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRule constructs an active rule, enforcing invariants.
func NewRule(ruleID id.RuleID, params RuleParams, now time.Time) (*Rule, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule name cannot be empty")
	}
	if !params.AppliesTo.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid audience %q", params.AppliesTo)
	}
	if !params.RuleType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid rule type %q", params.RuleType)
	}
	if params.NumericValue < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "numeric value cannot be negative")
	}
	return &Rule{
		ID:           ruleID,
		Name:         name,
		Description:  strings.TrimSpace(params.Description),
		AppliesTo:    params.AppliesTo,
		RuleType:     params.RuleType,
		NumericValue: params.NumericValue,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RuleParams carries caller-supplied fields for rule creation and update.
type RuleParams struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	AppliesTo    Audience `json:"applies_to"`
	RuleType     RuleType `json:"rule_type"`
	NumericValue float64  `json:"numeric_value"`
}

// GlobalConfig is the singleton set of defaults consulted when no specific
// rule matches an audience. Zero values disable the corresponding check.
type GlobalConfig struct {
	MaxReprogramCount int `json:"max_reprogram_count"`
	// MinNoticeHours is the default notice period before the trip date.
	MinNoticeHours int `json:"min_notice_hours"`
	// PenaltyPercent annotates authorizations with a default penalty.
	PenaltyPercent float64   `json:"penalty_percent"`
	UpdatedAt      time.Time `json:"updated_at"`
}
