package rule

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
)

func TestConfigValue(t *testing.T) {
	r := Rule{Name: "r", ActionConfig: `{"reason":"too fast","severity":"HIGH","score":7}`}
	assert.Equal(t, "too fast", r.ConfigValue("reason", "def"))
	assert.Equal(t, "7", r.ConfigValue("score", "def"))
	assert.Equal(t, "def", r.ConfigValue("topic", "def"))

	r.ActionConfig = "not json"
	assert.Equal(t, "def", r.ConfigValue("reason", "def"))

	r.ActionConfig = "  "
	assert.Equal(t, "def", r.ConfigValue("reason", "def"))
}

func TestMatches(t *testing.T) {
	r := Rule{FieldPath: "customer.country", Operator: condition.OpInList, Value: "NG, RU"}
	data := map[string]interface{}{"customer": map[string]interface{}{"country": "ru"}}
	ok, err := r.Matches(func(p string) interface{} { return condition.Resolve(data, p) })
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestByPriority(t *testing.T) {
	rules := []Rule{{ID: 3, Priority: 20}, {ID: 2, Priority: 10}, {ID: 1, Priority: 20}}
	slices.SortFunc(rules, ByPriority)
	assert.Equal(t, []int64{2, 1, 3}, []int64{rules[0].ID, rules[1].ID, rules[2].ID})
}

func TestValidate(t *testing.T) {
	good := Rule{Name: "n", FieldPath: "amount", Operator: condition.OpGreaterThan, Value: "1", ActionType: ActionFlag}
	require.NoError(t, Validate(&good))

	bad := Rule{Operator: "NOPE", ActionType: "EXPLODE", ActionConfig: "[1,2]"}
	err := Validate(&bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), `unknown operator "NOPE"`)
	assert.Contains(t, err.Error(), "actionConfig must be a JSON object")
}

func TestValidateAll_DuplicateIDs(t *testing.T) {
	r := Rule{ID: 1, Name: "n", FieldPath: "a", Operator: condition.OpIsNull, ActionType: ActionEnrich}
	err := ValidateAll([]Rule{r, r})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id 1")
}
