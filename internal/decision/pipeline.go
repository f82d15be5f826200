package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/audit"
	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

// Output topics.
const (
	TopicClean        = "clean-apps"
	TopicFlagged      = "flagged-apps"
	TopicBlocked      = "blocked-apps"
	TopicManualReview = "manual-review"
)

// notifier is the user tag on notifications raised by the pipeline.
const notifier = "fraud-gateway"

// Pipeline evaluates applications against the dynamic rule set and records
// one audit entry per application.
type Pipeline struct {
	rules  rule.Store
	audits audit.Store
	exec   reaction.Executor
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source used for audit and routing timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(rules rule.Store, audits audit.Store, exec reaction.Executor, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		rules:  rules,
		audits: audits,
		exec:   exec,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs one application through the enabled rules. Evaluation and
// reaction failures are absorbed; only Rule Store and Audit Store failures
// are returned. When the audit write fails the built record is still returned.
func (p *Pipeline) Process(ctx context.Context, app *event.Application) (*audit.Record, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	log := p.logger.With("application_id", app.ID)
	log.Info("processing application", "type", app.Type, "source", app.SourceSystem)

	enabled, err := p.rules.ListEnabled(ctx)
	if err != nil {
		metrics.ApplicationsProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}

	matched := p.match(log, app, enabled)

	rec := audit.Record{
		ApplicationID:    app.ID,
		ApplicationType:  app.Type,
		SourceSystem:     app.SourceSystem,
		RulesEvaluated:   len(enabled),
		RulesMatched:     len(matched),
		MatchedRuleIDs:   audit.JoinIDs(matched),
		MatchedRuleNames: audit.JoinNames(matched),
	}

	outcome := "clean"
	if len(matched) == 0 {
		log.Info("application passed all rules", "topic", TopicClean)
		p.route(ctx, TopicClean, app, nil)
	} else {
		primary := matched[0]
		rec.FinalAction = primary.ActionType
		rec.ActionDetails = primary.ActionConfig
		outcome = strings.ToLower(string(primary.ActionType))
		p.act(ctx, log, app, matched)
	}

	rec.ProcessedAt = p.now()
	metrics.ApplicationsProcessed.WithLabelValues(outcome).Inc()
	if err := p.audits.Append(ctx, rec); err != nil {
		metrics.AuditWrites.WithLabelValues("error").Inc()
		return &rec, fmt.Errorf("append audit record: %w", err)
	}
	metrics.AuditWrites.WithLabelValues("success").Inc()
	return &rec, nil
}

// match evaluates every rule in store order. A rule whose evaluation fails
// is logged and treated as not matching.
func (p *Pipeline) match(log *slog.Logger, app *event.Application, enabled []rule.Rule) []rule.Rule {
	var matched []rule.Rule
	for i := range enabled {
		r := enabled[i]
		ok, err := r.Matches(app.FieldValue)
		if err != nil {
			metrics.RuleEvaluationErrors.Inc()
			log.Warn("rule evaluation failed", "rule", r.Name, "rule_id", r.ID, "operator", r.Operator, "err", err)
			continue
		}
		if ok {
			log.Info("rule matched", "rule", r.Name, "rule_id", r.ID, "action", r.ActionType)
			metrics.RulesMatched.WithLabelValues(string(r.ActionType)).Inc()
			matched = append(matched, r)
		}
	}
	return matched
}

// act runs the action of every matched rule in priority order, stopping after
// the first BLOCK.
func (p *Pipeline) act(ctx context.Context, log *slog.Logger, app *event.Application, matched []rule.Rule) {
	for i := range matched {
		r := &matched[i]
		switch r.ActionType {
		case rule.ActionFlag:
			reason := r.ConfigValue("reason", "Flagged by "+r.Name)
			severity := r.ConfigValue("severity", "MEDIUM")
			typ := "warning"
			if strings.EqualFold(severity, "HIGH") {
				typ = "error"
			}
			p.exec.Execute(ctx, reaction.Push{Notification: event.NewNotification(
				notifier, typ, fmt.Sprintf("Flagged: %s - %s", app.ID, reason))})
			p.route(ctx, TopicFlagged, app, map[string]interface{}{
				"flagReason": reason,
				"severity":   severity,
				"ruleName":   r.Name,
			})

		case rule.ActionBlock:
			reason := r.ConfigValue("reason", "Blocked by "+r.Name)
			p.exec.Execute(ctx, reaction.Push{Notification: event.NewNotification(
				notifier, "error", fmt.Sprintf("Blocked: %s - %s", app.ID, reason))})
			p.route(ctx, TopicBlocked, app, map[string]interface{}{
				"blockReason": reason,
				"ruleName":    r.Name,
			})
			if rest := len(matched) - i - 1; rest > 0 {
				log.Info("blocked, skipping remaining matched rules", "rule", r.Name, "skipped", rest)
			}
			return

		case rule.ActionRoute:
			p.route(ctx, r.ConfigValue("topic", TopicManualReview), app, nil)

		case rule.ActionEnrich:
			log.Info("enriching application", "rule", r.Name)

		default:
			log.Warn("unknown action type", "rule", r.Name, "action", r.ActionType)
		}
	}
}

// route publishes a copy of the application data, stamped with routing
// metadata and extras, keyed by application id.
func (p *Pipeline) route(ctx context.Context, topic string, app *event.Application, extras map[string]interface{}) {
	msg := make(map[string]interface{}, len(app.Data)+2+len(extras))
	for k, v := range app.Data {
		msg[k] = v
	}
	msg["_applicationId"] = app.ID
	msg["_processedAt"] = p.now().Format(time.RFC3339Nano)
	for k, v := range extras {
		msg[k] = v
	}
	p.exec.Execute(ctx, reaction.Publish{Topic: topic, Key: app.ID, Message: msg})
	p.logger.Info("routed application", "application_id", app.ID, "topic", topic)
}
