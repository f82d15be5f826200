package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

var _ rule.Repository = (*Rules)(nil)

const ruleColumns = `id, name, description, enabled, priority, field_path, operator, value,
	action_type, action_config, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*rule.Rule, error) {
	var (
		r          rule.Rule
		op, action string
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Enabled, &r.Priority, &r.FieldPath, &op, &r.Value,
		&action, &r.ActionConfig, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Operator = condition.Operator(op)
	r.ActionType = rule.ActionKind(action)
	return &r, nil
}

func (s *Rules) queryRules(ctx context.Context, query string, args ...any) ([]rule.Rule, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, describe("query rules", err)
	}
	defer rows.Close()

	out := []rule.Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, describe("scan rule", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, describe("iterate rules", err)
	}
	return out, nil
}

// ListEnabled reads the enabled rules fresh from the database, ascending priority.
func (s *Rules) ListEnabled(ctx context.Context) ([]rule.Rule, error) {
	return s.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM fraud_rules WHERE enabled = ? ORDER BY priority ASC, id ASC`, true)
}

func (s *Rules) List(ctx context.Context) ([]rule.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM fraud_rules ORDER BY priority ASC, id ASC`)
}

func (s *Rules) Get(ctx context.Context, id int64) (*rule.Rule, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+ruleColumns+` FROM fraud_rules WHERE id = ?`), id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %d: %w", id, rule.ErrNotFound)
	}
	if err != nil {
		return nil, describe("get rule", err)
	}
	return r, nil
}

func (s *Rules) Create(ctx context.Context, r rule.Rule) (*rule.Rule, error) {
	if err := rule.Validate(&r); err != nil {
		return nil, err
	}
	ts := s.timestamp()
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO fraud_rules (name, description, enabled, priority, field_path, operator, value,
			action_type, action_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		r.Name, r.Description, r.Enabled, r.Priority, r.FieldPath, string(r.Operator), r.Value,
		string(r.ActionType), r.ActionConfig, ts, ts,
	).Scan(&r.ID)
	if err != nil {
		return nil, describe("insert rule", err)
	}
	r.CreatedAt, r.UpdatedAt = ts, ts
	return &r, nil
}

func (s *Rules) Update(ctx context.Context, id int64, r rule.Rule) (*rule.Rule, error) {
	if err := rule.Validate(&r); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE fraud_rules SET name = ?, description = ?, enabled = ?, priority = ?, field_path = ?,
			operator = ?, value = ?, action_type = ?, action_config = ?, updated_at = ?
		WHERE id = ?`),
		r.Name, r.Description, r.Enabled, r.Priority, r.FieldPath, string(r.Operator), r.Value,
		string(r.ActionType), r.ActionConfig, s.timestamp(), id,
	)
	if err != nil {
		return nil, describe("update rule", err)
	}
	if err := requireRow(res, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Rules) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM fraud_rules WHERE id = ?`), id)
	if err != nil {
		return describe("delete rule", err)
	}
	return requireRow(res, id)
}

func (s *Rules) Toggle(ctx context.Context, id int64) (*rule.Rule, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE fraud_rules SET enabled = NOT enabled, updated_at = ? WHERE id = ?`), s.timestamp(), id)
	if err != nil {
		return nil, describe("toggle rule", err)
	}
	if err := requireRow(res, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Seed inserts rules when the table is empty. It reports how many were added.
func (s *Rules) Seed(ctx context.Context, rules []rule.Rule) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fraud_rules`).Scan(&n); err != nil {
		return 0, describe("count rules", err)
	}
	if n > 0 {
		return 0, nil
	}
	for _, r := range rules {
		if _, err := s.Create(ctx, r); err != nil {
			return 0, fmt.Errorf("seed rule %q: %w", r.Name, err)
		}
	}
	return len(rules), nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return describe("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", id, rule.ErrNotFound)
	}
	return nil
}
