package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rumbo/internal/reprogram/models"
	id "rumbo/pkg/domain"
	"rumbo/pkg/platform/sentinel"
	"rumbo/pkg/platform/tx"
)

// Postgres persists rules in the reprogram_rules table and the global config
// as a single-row table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) execer {
	if txn, ok := tx.From(ctx); ok {
		return txn
	}
	return s.db
}

const ruleColumns = `id, name, description, applies_to, rule_type, numeric_value, active, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, rule *models.Rule) error {
	query := `
		INSERT INTO reprogram_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		rule.ID.String(), rule.Name, rule.Description,
		string(rule.AppliesTo), string(rule.RuleType), rule.NumericValue,
		rule.Active, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, ruleID id.RuleID) (*models.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM reprogram_rules WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, ruleID.String())
	return scanRule(row)
}

func (s *Postgres) Update(ctx context.Context, rule *models.Rule) error {
	query := `
		UPDATE reprogram_rules
		SET name = $2, description = $3, applies_to = $4, rule_type = $5,
		    numeric_value = $6, active = $7, updated_at = $8
		WHERE id = $1`

	res, err := s.execer(ctx).ExecContext(ctx, query,
		rule.ID.String(), rule.Name, rule.Description,
		string(rule.AppliesTo), string(rule.RuleType), rule.NumericValue,
		rule.Active, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) SetActive(ctx context.Context, ruleID id.RuleID, active bool, now time.Time) error {
	query := `UPDATE reprogram_rules SET active = $2, updated_at = $3 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, ruleID.String(), active, now)
	if err != nil {
		return fmt.Errorf("toggling rule: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) List(ctx context.Context) ([]*models.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM reprogram_rules ORDER BY created_at ASC, id ASC`
	return s.queryRules(ctx, query)
}

func (s *Postgres) ListActive(ctx context.Context) ([]*models.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM reprogram_rules WHERE active ORDER BY created_at ASC, id ASC`
	return s.queryRules(ctx, query)
}

func (s *Postgres) queryRules(ctx context.Context, query string) ([]*models.Rule, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var out []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// GlobalConfig reads the single-row defaults table. A missing row yields the
// zero config, meaning every default check is disabled.
func (s *Postgres) GlobalConfig(ctx context.Context) (models.GlobalConfig, error) {
	query := `
		SELECT max_reprogram_count, min_notice_hours, penalty_percent, updated_at
		FROM reprogram_global_config WHERE id = TRUE`

	var cfg models.GlobalConfig
	err := s.execer(ctx).QueryRowContext(ctx, query).Scan(
		&cfg.MaxReprogramCount, &cfg.MinNoticeHours, &cfg.PenaltyPercent, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GlobalConfig{}, nil
	}
	if err != nil {
		return models.GlobalConfig{}, fmt.Errorf("reading global config: %w", err)
	}
	return cfg, nil
}

func (s *Postgres) PutGlobalConfig(ctx context.Context, cfg models.GlobalConfig) error {
	query := `
		INSERT INTO reprogram_global_config (id, max_reprogram_count, min_notice_hours, penalty_percent, updated_at)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET max_reprogram_count = EXCLUDED.max_reprogram_count,
		    min_notice_hours = EXCLUDED.min_notice_hours,
		    penalty_percent = EXCLUDED.penalty_percent,
		    updated_at = EXCLUDED.updated_at`

	_, err := s.execer(ctx).ExecContext(ctx, query,
		cfg.MaxReprogramCount, cfg.MinNoticeHours, cfg.PenaltyPercent, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("writing global config: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.Rule, error) {
	var (
		rule    models.Rule
		rawID   string
		rawAud  string
		rawType string
	)
	err := row.Scan(&rawID, &rule.Name, &rule.Description, &rawAud, &rawType,
		&rule.NumericValue, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning rule: %w", err)
	}

	rule.ID, err = id.ParseRuleID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parsing stored rule id: %w", err)
	}
	rule.AppliesTo = models.Audience(rawAud)
	rule.RuleType = models.RuleType(rawType)
	return &rule, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
