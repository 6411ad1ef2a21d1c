//go:build integration

package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
	"rumbo/pkg/testutil/containers"
)

type PostgresRulesSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
	now   time.Time
}

func TestPostgresRulesSuite(t *testing.T) {
	suite.Run(t, new(PostgresRulesSuite))
}

func (s *PostgresRulesSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
	s.now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresRulesSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "reprogram_rules", "reprogram_global_config"))
}

func (s *PostgresRulesSuite) newRule(name string, ruleType models.RuleType, value float64) *models.Rule {
	rule, err := models.NewRule(id.NewRuleID(), models.RuleParams{
		Name:         name,
		AppliesTo:    models.AudienceClient,
		RuleType:     ruleType,
		NumericValue: value,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, rule))
	return rule
}

func (s *PostgresRulesSuite) TestCreateAndFind() {
	created := s.newRule("client cap", models.RuleMaxReprogramCount, 2)

	found, err := s.store.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Name, found.Name)
	s.Equal(models.RuleMaxReprogramCount, found.RuleType)
	s.True(found.Active)
}

func (s *PostgresRulesSuite) TestDuplicateIDConflicts() {
	created := s.newRule("client cap", models.RuleMaxReprogramCount, 2)
	err := s.store.Create(s.ctx, created)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresRulesSuite) TestUpdateUnknownRule() {
	rule, err := models.NewRule(id.NewRuleID(), models.RuleParams{
		Name:         "ghost",
		AppliesTo:    models.AudienceAll,
		RuleType:     models.RuleOther,
		NumericValue: 0,
	}, s.now)
	s.Require().NoError(err)

	s.ErrorIs(s.store.Update(s.ctx, rule), sentinel.ErrNotFound)
}

func (s *PostgresRulesSuite) TestSetActiveFiltersListActive() {
	kept := s.newRule("kept", models.RuleMinNoticeTime, 48)
	disabled := s.newRule("disabled", models.RuleMaxReprogramCount, 1)

	s.Require().NoError(s.store.SetActive(s.ctx, disabled.ID, false, s.now.Add(time.Hour)))

	active, err := s.store.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(kept.ID, active[0].ID)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresRulesSuite) TestGlobalConfigUpsert() {
	cfg, err := s.store.GlobalConfig(s.ctx)
	s.Require().NoError(err)
	s.Zero(cfg.MaxReprogramCount)

	want := models.GlobalConfig{
		MaxReprogramCount: 2,
		MinNoticeHours:    48,
		PenaltyPercent:    10,
		UpdatedAt:         s.now,
	}
	s.Require().NoError(s.store.PutGlobalConfig(s.ctx, want))

	got, err := s.store.GlobalConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, got.MaxReprogramCount)
	s.Equal(48, got.MinNoticeHours)
	s.Equal(float64(10), got.PenaltyPercent)

	want.MinNoticeHours = 72
	s.Require().NoError(s.store.PutGlobalConfig(s.ctx, want))

	got, err = s.store.GlobalConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(72, got.MinNoticeHours)
}
