package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/audit"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

var (
	_ audit.Store  = (*Audit)(nil)
	_ audit.Reader = (*Audit)(nil)
)

// Append inserts one audit record.
func (s *Audit) Append(ctx context.Context, rec audit.Record) error {
	processedAt := rec.ProcessedAt
	if processedAt.IsZero() {
		processedAt = s.timestamp()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO audit_log (application_id, application_type, source_system, rules_evaluated,
			rules_matched, matched_rule_ids, matched_rule_names, final_action, action_details, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ApplicationID, rec.ApplicationType, rec.SourceSystem, rec.RulesEvaluated, rec.RulesMatched,
		rec.MatchedRuleIDs, rec.MatchedRuleNames, nullString(string(rec.FinalAction)),
		nullString(rec.ActionDetails), processedAt.UTC(),
	)
	if err != nil {
		return describe("insert audit record", err)
	}
	return nil
}

// List returns one page of audit records, newest first.
func (s *Audit) List(ctx context.Context, page, size int) (*audit.Page, error) {
	if page < 0 || size <= 0 {
		return nil, fmt.Errorf("page must be >= 0 and size > 0")
	}
	p := &audit.Page{Page: page, Size: size, Records: []audit.Record{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&p.Total); err != nil {
		return nil, describe("count audit records", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, application_id, application_type, source_system, rules_evaluated, rules_matched,
			matched_rule_ids, matched_rule_names, final_action, action_details, processed_at
		FROM audit_log ORDER BY processed_at DESC, id DESC LIMIT ? OFFSET ?`), size, page*size)
	if err != nil {
		return nil, describe("query audit records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec             audit.Record
			action, details sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.ApplicationID, &rec.ApplicationType, &rec.SourceSystem,
			&rec.RulesEvaluated, &rec.RulesMatched, &rec.MatchedRuleIDs, &rec.MatchedRuleNames,
			&action, &details, &rec.ProcessedAt); err != nil {
			return nil, describe("scan audit record", err)
		}
		rec.FinalAction = rule.ActionKind(action.String)
		rec.ActionDetails = details.String
		p.Records = append(p.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, describe("iterate audit records", err)
	}
	return p, nil
}

// Stats aggregates the whole audit trail; Last24Hours counts records at or after since.
func (s *Audit) Stats(ctx context.Context, since time.Time) (*audit.Stats, error) {
	st := &audit.Stats{}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN processed_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rules_matched > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rules_matched = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN final_action = ? THEN 1 ELSE 0 END), 0)
		FROM audit_log`), since.UTC(), string(rule.ActionBlock),
	).Scan(&st.Total, &st.Last24Hours, &st.Flagged, &st.Clean, &st.Blocked)
	if err != nil {
		return nil, describe("audit stats", err)
	}
	st.ComputeFlagRate()
	return st, nil
}
