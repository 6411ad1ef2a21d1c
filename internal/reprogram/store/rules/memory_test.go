package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func (s *InMemorySuite) rule(name string, createdAt time.Time) *models.Rule {
	rule, err := models.NewRule(id.NewRuleID(), models.RuleParams{
		Name:         name,
		AppliesTo:    models.AudienceAll,
		RuleType:     models.RuleMinNoticeTime,
		NumericValue: 48,
	}, createdAt)
	s.Require().NoError(err)
	return rule
}

func (s *InMemorySuite) TestCreateAndFind() {
	rule := s.rule("standard notice", s.now)
	s.Require().NoError(s.store.Create(s.ctx, rule))

	found, err := s.store.FindByID(s.ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(rule.Name, found.Name)
	s.True(found.Active)

	s.Require().ErrorIs(s.store.Create(s.ctx, rule), sentinel.ErrConflict)

	_, err = s.store.FindByID(s.ctx, id.NewRuleID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestUpdate() {
	rule := s.rule("standard notice", s.now)
	s.Require().NoError(s.store.Create(s.ctx, rule))

	rule.NumericValue = 72
	rule.UpdatedAt = s.now.Add(time.Hour)
	s.Require().NoError(s.store.Update(s.ctx, rule))

	found, err := s.store.FindByID(s.ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(72.0, found.NumericValue)

	missing := s.rule("missing", s.now)
	s.Require().ErrorIs(s.store.Update(s.ctx, missing), sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestSetActiveAndListActive() {
	first := s.rule("first", s.now)
	second := s.rule("second", s.now.Add(time.Minute))
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	s.Require().NoError(s.store.SetActive(s.ctx, first.ID, false, s.now.Add(time.Hour)))

	active, err := s.store.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(second.ID, active[0].ID)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(first.ID, all[0].ID, "listing keeps creation order")

	s.Require().ErrorIs(s.store.SetActive(s.ctx, id.NewRuleID(), true, s.now), sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestGlobalConfigRoundTrip() {
	cfg, err := s.store.GlobalConfig(s.ctx)
	s.Require().NoError(err)
	s.Zero(cfg.MaxReprogramCount)

	want := models.GlobalConfig{MaxReprogramCount: 3, MinNoticeHours: 48, PenaltyPercent: 10, UpdatedAt: s.now}
	s.Require().NoError(s.store.PutGlobalConfig(s.ctx, want))

	cfg, err = s.store.GlobalConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(want, cfg)
}
