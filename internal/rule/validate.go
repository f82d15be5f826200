package rule

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks a rule before it is stored:
//   - name and field path are required
//   - operator and action type must be known
//   - action config, when set, must be a JSON object
func Validate(r *Rule) error {
	var errs []string
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(r.FieldPath) == "" {
		errs = append(errs, "fieldPath is required")
	}
	if !r.Operator.Valid() {
		errs = append(errs, fmt.Sprintf("unknown operator %q", r.Operator))
	}
	if !r.ActionType.Valid() {
		errs = append(errs, fmt.Sprintf("unknown actionType %q", r.ActionType))
	}
	if strings.TrimSpace(r.ActionConfig) != "" {
		var cfg map[string]interface{}
		if err := json.Unmarshal([]byte(r.ActionConfig), &cfg); err != nil {
			errs = append(errs, "actionConfig must be a JSON object")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// ValidateAll validates a rule set loaded in bulk, reporting duplicate ids too.
func ValidateAll(rules []Rule) error {
	seen := make(map[int64]int, len(rules))
	var errs []string
	for i := range rules {
		r := &rules[i]
		if err := Validate(r); err != nil {
			errs = append(errs, fmt.Sprintf("rules[%d] (%s): %v", i, r.Name, err))
		}
		if r.ID == 0 {
			continue
		}
		if prev, ok := seen[r.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate id %d (rules[%d] and rules[%d])", r.ID, prev, i))
		} else {
			seen[r.ID] = i
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("rule validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
