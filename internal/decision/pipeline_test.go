package decision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
	"github.com/gyaneshwarpardhi/fraudgate/internal/store/memory"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	reactions []reaction.Reaction
}

func (r *recorder) Execute(_ context.Context, re reaction.Reaction) {
	r.mu.Lock()
	r.reactions = append(r.reactions, re)
	r.mu.Unlock()
}

func (r *recorder) publishes() []reaction.Publish {
	var out []reaction.Publish
	for _, re := range r.reactions {
		if p, ok := re.(reaction.Publish); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) pushes() []reaction.Push {
	var out []reaction.Push
	for _, re := range r.reactions {
		if p, ok := re.(reaction.Push); ok {
			out = append(out, p)
		}
	}
	return out
}

type failingRules struct{}

func (failingRules) ListEnabled(context.Context) ([]rule.Rule, error) {
	return nil, errors.New("connection refused")
}

func newPipeline(rules rule.Store, audits *memory.Audit, exec reaction.Executor) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(rules, audits, exec, logger, WithClock(func() time.Time { return fixedNow }))
}

func app(data string) *event.Application {
	payload, err := event.DecodePayload([]byte(data))
	if err != nil {
		panic(err)
	}
	return event.NewApplication(payload)
}

func amountRule(id int64, name string, priority int, op condition.Operator, value string, action rule.ActionKind, cfg string) rule.Rule {
	return rule.Rule{
		ID: id, Name: name, Enabled: true, Priority: priority,
		FieldPath: "amount", Operator: op, Value: value,
		ActionType: action, ActionConfig: cfg,
	}
}

func TestProcess_BlockStopsLaterRules(t *testing.T) {
	rules := memory.NewRules(
		amountRule(2, "large-flag", 20, condition.OpGreaterThan, "100", rule.ActionFlag, `{"severity":"HIGH"}`),
		amountRule(1, "huge-block", 10, condition.OpGreaterThan, "500", rule.ActionBlock, `{"reason":"limit exceeded"}`),
	)
	audits := memory.NewAudit()
	rec := &recorder{}

	out, err := newPipeline(rules, audits, rec).Process(context.Background(), app(`{"id":"app-1","type":"loan","amount":900}`))
	require.NoError(t, err)

	assert.Equal(t, rule.ActionBlock, out.FinalAction)
	assert.Equal(t, `{"reason":"limit exceeded"}`, out.ActionDetails)
	assert.Equal(t, 2, out.RulesEvaluated)
	assert.Equal(t, 2, out.RulesMatched)
	assert.Equal(t, "1,2", out.MatchedRuleIDs)
	assert.Equal(t, "huge-block,large-flag", out.MatchedRuleNames)

	// only the BLOCK side effects happen
	pushes := rec.pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "error", pushes[0].Notification.Type)
	assert.Equal(t, "fraud-gateway", pushes[0].Notification.UserID)
	assert.Equal(t, "Blocked: app-1 - limit exceeded", pushes[0].Notification.Message)

	pubs := rec.publishes()
	require.Len(t, pubs, 1)
	assert.Equal(t, TopicBlocked, pubs[0].Topic)
	assert.Equal(t, "app-1", pubs[0].Key)
	msg := pubs[0].Message.(map[string]interface{})
	assert.Equal(t, "limit exceeded", msg["blockReason"])
	assert.Equal(t, "huge-block", msg["ruleName"])
	assert.Equal(t, "app-1", msg["_applicationId"])
	assert.Equal(t, fixedNow.Format(time.RFC3339Nano), msg["_processedAt"])

	require.Len(t, audits.Records(), 1)
	assert.Equal(t, fixedNow, audits.Records()[0].ProcessedAt)
}

func TestProcess_NoRulesIsClean(t *testing.T) {
	audits := memory.NewAudit()
	rec := &recorder{}

	out, err := newPipeline(memory.NewRules(), audits, rec).Process(context.Background(), app(`{"type":"loan"}`))
	require.NoError(t, err)

	assert.Equal(t, 0, out.RulesMatched)
	assert.Empty(t, out.FinalAction)
	assert.Empty(t, out.MatchedRuleIDs)
	assert.Equal(t, "unknown", out.SourceSystem)
	assert.NotEmpty(t, out.ApplicationID)

	pubs := rec.publishes()
	require.Len(t, pubs, 1)
	assert.Equal(t, TopicClean, pubs[0].Topic)
	assert.Equal(t, "loan", pubs[0].Message.(map[string]interface{})["type"])
	assert.Len(t, audits.Records(), 1)
}

func TestProcess_FlagSeverity(t *testing.T) {
	tests := []struct {
		name     string
		cfg      string
		wantType string
		reason   string
		severity string
	}{
		{"high severity", `{"severity":"high","reason":"velocity"}`, "error", "velocity", "high"},
		{"defaults", ``, "warning", "Flagged by watch", "MEDIUM"},
		{"broken config", `{oops`, "warning", "Flagged by watch", "MEDIUM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := memory.NewRules(amountRule(1, "watch", 10, condition.OpIsNotNull, "", rule.ActionFlag, tt.cfg))
			rec := &recorder{}
			_, err := newPipeline(rules, memory.NewAudit(), rec).Process(context.Background(), app(`{"id":"a","amount":1}`))
			require.NoError(t, err)

			pushes := rec.pushes()
			require.Len(t, pushes, 1)
			assert.Equal(t, tt.wantType, pushes[0].Notification.Type)
			assert.Equal(t, "Flagged: a - "+tt.reason, pushes[0].Notification.Message)

			pubs := rec.publishes()
			require.Len(t, pubs, 1)
			assert.Equal(t, TopicFlagged, pubs[0].Topic)
			msg := pubs[0].Message.(map[string]interface{})
			assert.Equal(t, tt.reason, msg["flagReason"])
			assert.Equal(t, tt.severity, msg["severity"])
			assert.Equal(t, "watch", msg["ruleName"])
		})
	}
}

func TestProcess_RouteAndEnrich(t *testing.T) {
	rules := memory.NewRules(
		amountRule(1, "enrich", 1, condition.OpIsNotNull, "", rule.ActionEnrich, ""),
		amountRule(2, "default-route", 2, condition.OpIsNotNull, "", rule.ActionRoute, ""),
		amountRule(3, "custom-route", 3, condition.OpIsNotNull, "", rule.ActionRoute, `{"topic":"vip-review"}`),
	)
	rec := &recorder{}
	out, err := newPipeline(rules, memory.NewAudit(), rec).Process(context.Background(), app(`{"id":"a","amount":1}`))
	require.NoError(t, err)

	assert.Equal(t, rule.ActionEnrich, out.FinalAction)
	assert.Empty(t, rec.pushes())
	pubs := rec.publishes()
	require.Len(t, pubs, 2)
	assert.Equal(t, TopicManualReview, pubs[0].Topic)
	assert.Equal(t, "vip-review", pubs[1].Topic)
}

func TestProcess_ToggleTakesEffectImmediately(t *testing.T) {
	ctx := context.Background()
	rules := memory.NewRules(amountRule(1, "big", 10, condition.OpGreaterThan, "100", rule.ActionFlag, ""))
	audits := memory.NewAudit()
	p := newPipeline(rules, audits, &recorder{})

	out, err := p.Process(ctx, app(`{"amount":500}`))
	require.NoError(t, err)
	assert.Equal(t, 1, out.RulesEvaluated)
	assert.Equal(t, 1, out.RulesMatched)

	_, err = rules.Toggle(ctx, 1)
	require.NoError(t, err)

	out, err = p.Process(ctx, app(`{"amount":500}`))
	require.NoError(t, err)
	assert.Equal(t, 0, out.RulesEvaluated)
	assert.Equal(t, 0, out.RulesMatched)

	_, err = rules.Toggle(ctx, 1)
	require.NoError(t, err)

	out, err = p.Process(ctx, app(`{"amount":500}`))
	require.NoError(t, err)
	assert.Equal(t, 1, out.RulesMatched)
	assert.Len(t, audits.Records(), 3)
}

func TestProcess_EvaluationErrorIsNoMatch(t *testing.T) {
	rules := memory.NewRules(
		amountRule(1, "not-a-number", 10, condition.OpGreaterThan, "abc", rule.ActionBlock, ""),
		amountRule(2, "bad-regex", 20, condition.OpRegex, "([", rule.ActionBlock, ""),
		amountRule(3, "ok", 30, condition.OpEquals, "42", rule.ActionFlag, ""),
	)
	rec := &recorder{}
	out, err := newPipeline(rules, memory.NewAudit(), rec).Process(context.Background(), app(`{"amount":42}`))
	require.NoError(t, err)
	assert.Equal(t, 3, out.RulesEvaluated)
	assert.Equal(t, 1, out.RulesMatched)
	assert.Equal(t, "ok", out.MatchedRuleNames)
	assert.Equal(t, rule.ActionFlag, out.FinalAction)
}

func TestProcess_NestedFieldPath(t *testing.T) {
	r := rule.Rule{
		ID: 1, Name: "risky-country", Enabled: true, Priority: 1,
		FieldPath: "customer.address.country", Operator: condition.OpInList, Value: "NG, RU",
		ActionType: rule.ActionFlag,
	}
	rec := &recorder{}
	out, err := newPipeline(memory.NewRules(r), memory.NewAudit(), rec).
		Process(context.Background(), app(`{"customer":{"address":{"country":"ru"}}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, out.RulesMatched)
}

func TestProcess_StoreFailures(t *testing.T) {
	rec := &recorder{}
	_, err := newPipeline(failingRules{}, memory.NewAudit(), rec).Process(context.Background(), app(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list enabled rules")
	assert.Empty(t, rec.reactions)

	audits := memory.NewAudit()
	audits.FailWith(errors.New("disk full"))
	out, err := newPipeline(memory.NewRules(), audits, rec).Process(context.Background(), app(`{"id":"x"}`))
	require.Error(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "x", out.ApplicationID)
	// the clean publish still happened
	assert.Len(t, rec.publishes(), 1)
}

func TestProcess_ReactionFailureStillAudits(t *testing.T) {
	rules := memory.NewRules(amountRule(1, "flag", 1, condition.OpIsNotNull, "", rule.ActionFlag, ""))
	audits := memory.NewAudit()
	runner := reaction.NewRunner(nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := newPipeline(rules, audits, runner).Process(context.Background(), app(`{"amount":1}`))
	require.NoError(t, err)
	assert.Len(t, audits.Records(), 1)
}
