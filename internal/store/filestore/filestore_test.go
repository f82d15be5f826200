package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

const rulesYAML = `
version: "1"
rules:
  - id: 5
    name: block-sanctioned
    priority: 10
    field_path: customer.country
    operator: in_list
    value: "KP, IR"
    action_type: BLOCK
    action_config: '{"reason":"sanctioned country"}'
  - name: flag-large
    priority: 50
    field_path: amount
    operator: GREATER_THAN
    value: "10000"
    action_type: FLAG
  - name: route-new-customers
    enabled: false
    field_path: customer.tenureDays
    operator: LESS_THAN
    value: "30"
    action_type: ROUTE
    action_config: '{"topic":"kyc-review"}'
`

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	rules, err := Load(writeFile(t, t.TempDir(), rulesYAML))
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, int64(5), rules[0].ID)
	assert.Equal(t, condition.OpInList, rules[0].Operator)
	assert.True(t, rules[0].Enabled)

	assert.Equal(t, int64(6), rules[1].ID)
	assert.Equal(t, 50, rules[1].Priority)

	assert.Equal(t, int64(7), rules[2].ID)
	assert.False(t, rules[2].Enabled)
	assert.Equal(t, rule.DefaultPriority, rules[2].Priority)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "rules: [\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, `
rules:
  - id: 1
    name: a
    field_path: x
    operator: SOUNDS_LIKE
    action_type: FLAG
  - id: 1
    name: b
    field_path: x
    operator: IS_NULL
    action_type: FLAG
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOUNDS_LIKE")
	assert.Contains(t, err.Error(), "duplicate id 1")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestStore_ReadOnlyRepository(t *testing.T) {
	ctx := context.Background()
	s, err := Open(writeFile(t, t.TempDir(), rulesYAML), nil)
	require.NoError(t, err)

	enabled, err := s.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "block-sanctioned", enabled[0].Name)
	assert.Equal(t, "flag-large", enabled[1].Name)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "kyc-review", got.ConfigValue("topic", ""))

	_, err = s.Get(ctx, 99)
	assert.ErrorIs(t, err, rule.ErrNotFound)

	_, err = s.Create(ctx, rule.Rule{})
	assert.ErrorIs(t, err, rule.ErrReadOnly)
	_, err = s.Update(ctx, 5, rule.Rule{})
	assert.ErrorIs(t, err, rule.ErrReadOnly)
	_, err = s.Toggle(ctx, 5)
	assert.ErrorIs(t, err, rule.ErrReadOnly)
	assert.ErrorIs(t, s.Delete(ctx, 5), rule.ErrReadOnly)
}

func TestStore_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, rulesYAML)
	s, err := Open(path, nil)
	require.NoError(t, err)

	var notified int
	s.OnChange(func([]rule.Rule) { notified++ })

	writeFile(t, dir, "rules: [\n")
	_, err = s.Reload()
	assert.Error(t, err)

	all, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Zero(t, notified)
}

func TestStore_WatchHotReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, rulesYAML)
	s, err := Open(path, nil)
	require.NoError(t, err)

	stop, err := s.Watch()
	require.NoError(t, err)
	defer stop()

	writeFile(t, dir, `
rules:
  - name: only-rule
    field_path: amount
    operator: IS_NOT_NULL
    action_type: ENRICH
`)

	require.Eventually(t, func() bool {
		enabled, err := s.ListEnabled(context.Background())
		return err == nil && len(enabled) == 1 && enabled[0].Name == "only-rule"
	}, 3*time.Second, 20*time.Millisecond)
}
