package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

// Record summarises the processing of one application. Records are append-only.
type Record struct {
	ID               int64           `json:"id"`
	ApplicationID    string          `json:"applicationId"`
	ApplicationType  string          `json:"applicationType"`
	SourceSystem     string          `json:"sourceSystem"`
	RulesEvaluated   int             `json:"rulesEvaluated"`
	RulesMatched     int             `json:"rulesMatched"`
	MatchedRuleIDs   string          `json:"matchedRuleIds"`
	MatchedRuleNames string          `json:"matchedRuleNames"`
	FinalAction      rule.ActionKind `json:"finalAction,omitempty"`
	ActionDetails    string          `json:"actionDetails,omitempty"`
	ProcessedAt      time.Time       `json:"processedAt"`
}

// JoinIDs renders matched rule ids comma-joined, preserving order.
func JoinIDs(rules []rule.Rule) string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = strconv.FormatInt(r.ID, 10)
	}
	return strings.Join(ids, ",")
}

// JoinNames renders matched rule names comma-joined, preserving order.
func JoinNames(rules []rule.Rule) string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return strings.Join(names, ",")
}

// Store is the write contract used by the decision pipeline.
type Store interface {
	Append(ctx context.Context, rec Record) error
}

// Page is one page of records, newest first.
type Page struct {
	Records []Record `json:"content"`
	Page    int      `json:"page"`
	Size    int      `json:"size"`
	Total   int64    `json:"totalElements"`
}

// Stats aggregates the audit trail.
type Stats struct {
	Total       int64   `json:"total"`
	Last24Hours int64   `json:"last24Hours"`
	Flagged     int64   `json:"flagged"`
	Clean       int64   `json:"clean"`
	Blocked     int64   `json:"blocked"`
	FlagRate    float64 `json:"flagRate"`
}

// ComputeFlagRate fills FlagRate as a percentage of Total.
func (s *Stats) ComputeFlagRate() {
	if s.Total > 0 {
		s.FlagRate = float64(s.Flagged) / float64(s.Total) * 100
	}
}

// Reader is the browse contract used by the HTTP API.
type Reader interface {
	List(ctx context.Context, page, size int) (*Page, error)
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}
