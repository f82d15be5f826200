package routing

import (
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
)

// Rule is a compiled predicate/reaction pair for generic events.
type Rule interface {
	// Name identifies the rule in logs and metrics.
	Name() string
	// Matches reports whether the rule fires for ev.
	Matches(ev *event.Event) bool
	// Reactions builds the side effects for a matching event, in execution order.
	Reactions(ev *event.Event) []reaction.Reaction
}

// Registry is an ordered, fixed set of routing rules. It is built once at
// startup and only read afterwards.
type Registry struct {
	rules []Rule
	names map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register appends a rule. Panics on duplicate name to surface misconfiguration early.
func (r *Registry) Register(rule Rule) {
	if _, exists := r.names[rule.Name()]; exists {
		panic(fmt.Sprintf("routing registry: duplicate rule %q", rule.Name()))
	}
	r.names[rule.Name()] = struct{}{}
	r.rules = append(r.rules, rule)
}

// Rules returns the registered rules in declaration order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Default returns the built-in rule set: high-value orders, failed payments
// and low inventory, in that order.
func Default() *Registry {
	r := NewRegistry()
	r.Register(HighValueOrder{Threshold: HighValueThreshold})
	r.Register(PaymentFailed{})
	r.Register(InventoryLow{})
	return r
}

// Evaluate tests ev against every rule. All matching rules fire; the result
// is the concatenation of their reactions in declaration order.
func (r *Registry) Evaluate(ev *event.Event, logger *slog.Logger) []reaction.Reaction {
	var out []reaction.Reaction
	for _, rule := range r.rules {
		if !rule.Matches(ev) {
			continue
		}
		if logger != nil {
			logger.Info("routing rule matched", "rule", rule.Name(), "event_id", ev.ID, "type", ev.Type)
		}
		metrics.StaticRulesMatched.WithLabelValues(rule.Name()).Inc()
		out = append(out, rule.Reactions(ev)...)
	}
	return out
}
