package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudgate/internal/audit"
	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

func validRule(name string, priority int, enabled bool) rule.Rule {
	return rule.Rule{
		Name:       name,
		Enabled:    enabled,
		Priority:   priority,
		FieldPath:  "amount",
		Operator:   condition.OpGreaterThan,
		Value:      "100",
		ActionType: rule.ActionFlag,
	}
}

func TestRules_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewRules()

	created, err := s.Create(ctx, validRule("a", 20, true))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = s.Create(ctx, rule.Rule{Name: "bad"})
	assert.ErrorIs(t, err, rule.ErrInvalid)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	upd := validRule("a2", 5, true)
	updated, err := s.Update(ctx, created.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "a2", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = s.Update(ctx, 99, upd)
	assert.ErrorIs(t, err, rule.ErrNotFound)

	toggled, err := s.Toggle(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	require.NoError(t, s.Delete(ctx, created.ID))
	assert.ErrorIs(t, s.Delete(ctx, created.ID), rule.ErrNotFound)
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, rule.ErrNotFound)
}

func TestRules_ListEnabledOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewRules(
		func() rule.Rule { r := validRule("late", 30, true); r.ID = 7; return r }(),
		validRule("off", 1, false),
		validRule("early", 10, true),
	)

	enabled, err := s.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "early", enabled[0].Name)
	assert.Equal(t, "late", enabled[1].Name)
	assert.Equal(t, int64(7), enabled[1].ID)
	assert.Equal(t, int64(9), enabled[0].ID)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "off", all[0].Name)
}

func TestAudit_ListAndStats(t *testing.T) {
	ctx := context.Background()
	a := NewAudit()
	now := time.Now().UTC()

	recs := []audit.Record{
		{ApplicationID: "1", RulesMatched: 0, ProcessedAt: now.Add(-48 * time.Hour)},
		{ApplicationID: "2", RulesMatched: 1, FinalAction: rule.ActionFlag, ProcessedAt: now.Add(-time.Hour)},
		{ApplicationID: "3", RulesMatched: 2, FinalAction: rule.ActionBlock, ProcessedAt: now},
		{ApplicationID: "4", RulesMatched: 0, ProcessedAt: now},
	}
	for _, r := range recs {
		require.NoError(t, a.Append(ctx, r))
	}

	p, err := a.List(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Total)
	require.Len(t, p.Records, 3)
	assert.Equal(t, "4", p.Records[0].ApplicationID)
	assert.Equal(t, "2", p.Records[2].ApplicationID)

	p, err = a.List(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, p.Records, 1)
	assert.Equal(t, "1", p.Records[0].ApplicationID)

	p, err = a.List(ctx, 5, 3)
	require.NoError(t, err)
	assert.Empty(t, p.Records)

	_, err = a.List(ctx, 0, 0)
	assert.Error(t, err)

	st, err := a.Stats(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, &audit.Stats{Total: 4, Last24Hours: 3, Flagged: 2, Clean: 2, Blocked: 1, FlagRate: 50}, st)
}
