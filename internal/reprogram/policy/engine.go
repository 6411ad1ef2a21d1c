// Package policy decides whether a reprogramming request is authorized.
// Evaluation is pure with respect to its inputs: rules and prior history go
// in, a Decision comes out. Persisting the attempt is the caller's job.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
)

// RuleSource provides the active rule set and the global defaults.
type RuleSource interface {
	ListActive(ctx context.Context) ([]*models.Rule, error)
	GlobalConfig(ctx context.Context) (models.GlobalConfig, error)
}

// HistorySource reports how many authorized reprogrammings a booking has
// already consumed.
type HistorySource interface {
	CountAuthorized(ctx context.Context, bookingID id.BookingID) (int, error)
}

// Request describes one reprogramming attempt to authorize.
type Request struct {
	BookingID id.BookingID
	// TripDate is the booking's current start date, the one being moved.
	TripDate time.Time
	// RequestedDate is the proposed new start date.
	RequestedDate time.Time
	ActorRole     id.Role
	Now           time.Time
}

// Decision is the outcome of policy evaluation. A denial carries the rule
// that drove it so the audit log can attribute the refusal.
type Decision struct {
	Accepted     bool
	Reason       string
	ViolatedRule *id.RuleID
	// Penalty is the discount percentage annotated on acceptance. Zero when
	// no penalty rule applies.
	Penalty float64
}

type Engine struct {
	rules   RuleSource
	history HistorySource
	logger  *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(rules RuleSource, history HistorySource, opts ...Option) *Engine {
	e := &Engine{rules: rules, history: history, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize evaluates the active rules that match the actor's role. Checks
// run in a fixed order: reprogram count first, then notice time. When several
// rules of the same type match, the most restrictive one wins: the lowest
// count, the longest notice, the highest penalty. Rule types unknown to this
// engine are skipped, not failed. A history read failure is returned as an
// error wrapping sentinel.ErrUnavailable, never as a denial.
func (e *Engine) Authorize(ctx context.Context, req Request) (Decision, error) {
	active, err := e.rules.ListActive(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("loading active rules: %w", err)
	}
	global, err := e.rules.GlobalConfig(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("loading global config: %w", err)
	}

	matching := lo.Filter(active, func(rule *models.Rule, _ int) bool {
		return rule.AppliesTo.Matches(req.ActorRole)
	})
	byType := lo.GroupBy(matching, func(rule *models.Rule) models.RuleType {
		return rule.RuleType
	})

	decision, denied, err := e.checkReprogramCount(ctx, req, byType[models.RuleMaxReprogramCount], global)
	if err != nil {
		return Decision{}, err
	}
	if denied {
		return decision, nil
	}
	noticeRules := append(byType[models.RuleMinNoticeTime], byType[models.RuleAdvanceNoticeTime]...)
	if decision, denied := e.checkNoticeTime(req, noticeRules, global); denied {
		return decision, nil
	}

	return Decision{
		Accepted: true,
		Penalty:  e.penalty(byType[models.RulePenaltyDiscount], global),
	}, nil
}

// checkReprogramCount enforces the consumed-change cap. An explicit matching
// rule binds even at zero (no reprogramming allowed); only the absent global
// default of zero disables the check.
func (e *Engine) checkReprogramCount(ctx context.Context, req Request, rules []*models.Rule, global models.GlobalConfig) (Decision, bool, error) {
	limit := float64(global.MaxReprogramCount)
	var violated *id.RuleID
	if len(rules) > 0 {
		rule := lo.MinBy(rules, func(a, b *models.Rule) bool {
			return a.NumericValue < b.NumericValue
		})
		limit = rule.NumericValue
		violated = &rule.ID
	} else if limit <= 0 {
		return Decision{}, false, nil
	}

	used, err := e.history.CountAuthorized(ctx, req.BookingID)
	if err != nil {
		e.logger.ErrorContext(ctx, "counting prior reprogrammings failed",
			slog.String("booking_id", req.BookingID.String()), slog.Any("error", err))
		return Decision{}, false, fmt.Errorf("%w: counting prior reprogrammings: %w", sentinel.ErrUnavailable, err)
	}
	if float64(used) >= limit {
		return Decision{
			Reason:       fmt.Sprintf("booking already reprogrammed %d of %d allowed times", used, int(limit)),
			ViolatedRule: violated,
		}, true, nil
	}
	return Decision{}, false, nil
}

func (e *Engine) checkNoticeTime(req Request, rules []*models.Rule, global models.GlobalConfig) (Decision, bool) {
	requiredHours := float64(global.MinNoticeHours)
	var violated *id.RuleID
	if len(rules) > 0 {
		rule := lo.MaxBy(rules, func(a, b *models.Rule) bool {
			return a.NumericValue > b.NumericValue
		})
		requiredHours = rule.NumericValue
		violated = &rule.ID
	}
	if requiredHours <= 0 {
		return Decision{}, false
	}

	notice := req.TripDate.Sub(req.Now).Hours()
	if notice < requiredHours {
		return Decision{
			Reason:       fmt.Sprintf("requires %.0f hours notice, only %.0f remain before the trip", requiredHours, notice),
			ViolatedRule: violated,
		}, true
	}
	return Decision{}, false
}

// penalty picks the highest matching discount so operators cannot dodge a
// stricter penalty by stacking a lenient rule next to it. The global default
// applies only when no penalty rule matches at all.
func (e *Engine) penalty(rules []*models.Rule, global models.GlobalConfig) float64 {
	if len(rules) == 0 {
		return global.PenaltyPercent
	}
	highest := 0.0
	for _, rule := range rules {
		if rule.NumericValue > highest {
			highest = rule.NumericValue
		}
	}
	return highest
}
