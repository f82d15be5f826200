package rule

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
)

// ActionKind is what the decision pipeline does with an application a rule matched.
type ActionKind string

const (
	ActionFlag   ActionKind = "FLAG"
	ActionBlock  ActionKind = "BLOCK"
	ActionRoute  ActionKind = "ROUTE"
	ActionEnrich ActionKind = "ENRICH"
)

var actionLabels = map[ActionKind]string{
	ActionFlag:   "Flag for Review",
	ActionBlock:  "Block Application",
	ActionRoute:  "Route to Topic",
	ActionEnrich: "Enrich with Metadata",
}

// ActionKinds returns every action kind in declaration order.
func ActionKinds() []ActionKind {
	return []ActionKind{ActionFlag, ActionBlock, ActionRoute, ActionEnrich}
}

func (k ActionKind) Valid() bool {
	_, ok := actionLabels[k]
	return ok
}

func (k ActionKind) Label() string {
	if l, ok := actionLabels[k]; ok {
		return l
	}
	return string(k)
}

// DefaultPriority is assigned to new rules that do not set one.
const DefaultPriority = 100

// Rule is a user-authored condition/action pair. Lower priority values are
// evaluated first and win ties.
type Rule struct {
	ID           int64              `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name"`
	Description  string             `json:"description" yaml:"description"`
	Enabled      bool               `json:"enabled" yaml:"enabled"`
	Priority     int                `json:"priority" yaml:"priority"`
	FieldPath    string             `json:"fieldPath" yaml:"field_path"`
	Operator     condition.Operator `json:"operator" yaml:"operator"`
	Value        string             `json:"value" yaml:"value"`
	ActionType   ActionKind         `json:"actionType" yaml:"action_type"`
	ActionConfig string             `json:"actionConfig" yaml:"action_config"`
	CreatedAt    time.Time          `json:"createdAt" yaml:"-"`
	UpdatedAt    time.Time          `json:"updatedAt" yaml:"-"`
}

// Matches evaluates the rule's condition against a record resolver.
// The error, if any, is a diagnostic; a failed evaluation never matches.
func (r *Rule) Matches(lookup func(path string) interface{}) (bool, error) {
	return condition.Evaluate(lookup(r.FieldPath), r.Operator, r.Value)
}

// ConfigValue reads key from the JSON-encoded action config. It returns def
// when the config is blank, unparsable, or lacks the key.
func (r *Rule) ConfigValue(key, def string) string {
	if strings.TrimSpace(r.ActionConfig) == "" {
		return def
	}
	var cfg map[string]interface{}
	if err := json.Unmarshal([]byte(r.ActionConfig), &cfg); err != nil {
		return def
	}
	v, ok := cfg[key]
	if !ok || v == nil {
		return def
	}
	return condition.Text(v)
}

// ByPriority orders rules ascending by priority, then by id.
func ByPriority(a, b Rule) int {
	if a.Priority != b.Priority {
		return a.Priority - b.Priority
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
