package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gtaa-lab/internal/storage"
)

// RuleStore implements storage.RuleStore using PostgreSQL.
type RuleStore struct {
	pool *Pool
}

// NewRuleStore creates a new RuleStore.
func NewRuleStore(pool *Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RuleStore = (*RuleStore)(nil)

// Insert appends a rule to a portfolio.
func (s *RuleStore) Insert(ctx context.Context, portfolioID int64, ruleText string) error {
	if ruleText == "" {
		return storage.ErrInvalidInput
	}

	defer observe("rule_insert", time.Now())

	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolio_rule (portfolio_id, rule_text) VALUES ($1, $2)`,
		portfolioID, ruleText,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// GetRules retrieves rule texts of a portfolio in rule_id order.
func (s *RuleStore) GetRules(ctx context.Context, portfolioID int64) ([]string, error) {
	defer observe("rule_get", time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT rule_text FROM portfolio_rule WHERE portfolio_id = $1 ORDER BY rule_id ASC`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("get rules: %w", err)
	}

	rules, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect rules: %w", err)
	}
	return rules, nil
}
