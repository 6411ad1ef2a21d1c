package rules

import (
	"context"
	"sort"
	"sync"
	"time"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
)

// InMemory keeps rules and the global config in process memory. Intended for
// tests and single-node development runs.
type InMemory struct {
	mu     sync.RWMutex
	rules  map[id.RuleID]*models.Rule
	global models.GlobalConfig
}

func NewInMemory() *InMemory {
	return &InMemory{rules: make(map[id.RuleID]*models.Rule)}
}

func (s *InMemory) Create(_ context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; ok {
		return sentinel.ErrConflict
	}
	s.rules[rule.ID] = copyRule(rule)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, ruleID id.RuleID) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[ruleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRule(rule), nil
}

func (s *InMemory) Update(_ context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.rules[rule.ID] = copyRule(rule)
	return nil
}

// SetActive flips a rule's active flag without touching its other fields.
func (s *InMemory) SetActive(_ context.Context, ruleID id.RuleID, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[ruleID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rule.Active = active
	rule.UpdatedAt = now
	return nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, copyRule(rule))
	}
	sortRules(out)
	return out, nil
}

// ListActive returns only rules that participate in policy evaluation.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.Active {
			out = append(out, copyRule(rule))
		}
	}
	sortRules(out)
	return out, nil
}

func (s *InMemory) GlobalConfig(_ context.Context) (models.GlobalConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global, nil
}

func (s *InMemory) PutGlobalConfig(_ context.Context, cfg models.GlobalConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = cfg
	return nil
}

func sortRules(rules []*models.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
}

func copyRule(rule *models.Rule) *models.Rule {
	cp := *rule
	return &cp
}
