// Package service exposes the administrative surface for reprogramming
// policy: rule management and the global configuration. Rule changes take
// effect on the next policy evaluation; running evaluations are unaffected.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/sentinel"
	"rumbo/pkg/platform/tx"
	"rumbo/pkg/requestcontext"
)

// RuleStore is the persistence contract for rules and the global config.
type RuleStore interface {
	Create(ctx context.Context, rule *models.Rule) error
	FindByID(ctx context.Context, ruleID id.RuleID) (*models.Rule, error)
	Update(ctx context.Context, rule *models.Rule) error
	SetActive(ctx context.Context, ruleID id.RuleID, active bool, now time.Time) error
	List(ctx context.Context) ([]*models.Rule, error)
	GlobalConfig(ctx context.Context) (models.GlobalConfig, error)
	PutGlobalConfig(ctx context.Context, cfg models.GlobalConfig) error
}

type Admin struct {
	store  RuleStore
	runner tx.Runner
	logger *slog.Logger
}

type Option func(*Admin)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Admin) { a.logger = logger }
}

// WithTxRunner sets the transaction boundary for read-modify-write updates.
// Postgres deployments pass a tx.SQLRunner; the default is a no-op boundary.
func WithTxRunner(runner tx.Runner) Option {
	return func(a *Admin) { a.runner = runner }
}

func NewAdmin(store RuleStore, opts ...Option) *Admin {
	a := &Admin{store: store, runner: tx.NopRunner{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Admin) CreateRule(ctx context.Context, params models.RuleParams) (*models.Rule, error) {
	now := requestcontext.Now(ctx)
	rule, err := models.NewRule(id.NewRuleID(), params, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid rule")
	}
	if err := a.store.Create(ctx, rule); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store rule")
	}

	a.audit(ctx, "rule_created", rule.ID)
	return rule, nil
}

func (a *Admin) GetRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error) {
	rule, err := a.store.FindByID(ctx, ruleID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "rule not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule")
	}
	return rule, nil
}

// UpdateRule replaces a rule's definition wholesale. The active flag is
// managed separately through SetRuleActive. Read and write share one
// transaction so a concurrent update cannot slip between them.
func (a *Admin) UpdateRule(ctx context.Context, ruleID id.RuleID, params models.RuleParams) (*models.Rule, error) {
	var updated *models.Rule
	err := a.runner.RunInTx(ctx, func(ctx context.Context) error {
		current, err := a.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}

		updated, err = models.NewRule(ruleID, params, current.CreatedAt)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid rule")
		}
		updated.Active = current.Active
		updated.UpdatedAt = requestcontext.Now(ctx)

		if err := a.store.Update(ctx, updated); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "rule not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update rule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.audit(ctx, "rule_updated", ruleID)
	return updated, nil
}

func (a *Admin) SetRuleActive(ctx context.Context, ruleID id.RuleID, active bool) error {
	err := a.store.SetActive(ctx, ruleID, active, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "rule not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to toggle rule")
	}

	event := "rule_deactivated"
	if active {
		event = "rule_activated"
	}
	a.audit(ctx, event, ruleID)
	return nil
}

func (a *Admin) ListRules(ctx context.Context) ([]*models.Rule, error) {
	rules, err := a.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rules")
	}
	return rules, nil
}

func (a *Admin) GlobalConfig(ctx context.Context) (models.GlobalConfig, error) {
	cfg, err := a.store.GlobalConfig(ctx)
	if err != nil {
		return models.GlobalConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load global config")
	}
	return cfg, nil
}

func (a *Admin) UpdateGlobalConfig(ctx context.Context, cfg models.GlobalConfig) (models.GlobalConfig, error) {
	if cfg.MaxReprogramCount < 0 || cfg.MinNoticeHours < 0 || cfg.PenaltyPercent < 0 {
		return models.GlobalConfig{}, dErrors.New(dErrors.CodeValidation, "global config values cannot be negative")
	}
	cfg.UpdatedAt = requestcontext.Now(ctx)

	if err := a.store.PutGlobalConfig(ctx, cfg); err != nil {
		return models.GlobalConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store global config")
	}

	a.logger.Info("reprogramming global config updated",
		slog.String("log_type", "audit"),
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.Int("max_reprogram_count", cfg.MaxReprogramCount),
		slog.Int("min_notice_hours", cfg.MinNoticeHours),
	)
	return cfg, nil
}

func (a *Admin) audit(ctx context.Context, event string, ruleID id.RuleID) {
	a.logger.Info(event,
		slog.String("log_type", "audit"),
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.String("rule_id", ruleID.String()),
	)
}
