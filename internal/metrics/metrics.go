package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_messages_consumed_total",
		Help: "Total number of bus messages consumed, labelled by stream.",
	}, []string{"stream"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_events_dropped_total",
		Help: "Total number of inbound messages dropped, labelled by reason.",
	}, []string{"reason"})

	ApplicationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_applications_processed_total",
		Help: "Total number of applications processed, labelled by final outcome.",
	}, []string{"outcome"})

	RulesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_rules_matched_total",
		Help: "Total number of dynamic rule matches, labelled by action type.",
	}, []string{"action"})

	RuleEvaluationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudgate_rule_evaluation_errors_total",
		Help: "Total number of rule evaluations that failed and were treated as non-matching.",
	})

	StaticRulesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_static_rules_matched_total",
		Help: "Total number of static routing rule matches, labelled by rule.",
	}, []string{"rule"})

	ReactionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_reactions_executed_total",
		Help: "Total number of reactions executed, labelled by kind and status.",
	}, []string{"kind", "status"})

	AuditWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_audit_writes_total",
		Help: "Total number of audit record writes, labelled by status.",
	}, []string{"status"})

	LiveListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fraudgate_live_listeners",
		Help: "Current number of registered live notification listeners.",
	})

	RuleFileRules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fraudgate_rule_file_rules",
		Help: "Number of rules currently loaded from the rule file.",
	})

	RuleFileReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudgate_rule_file_reloads_total",
		Help: "Total number of rule file hot reloads, labelled by status.",
	}, []string{"status"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fraudgate_pipeline_duration_ms",
		Help:    "Decision pipeline latency per application in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)
