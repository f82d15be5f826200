// Package memory provides in-process rule and audit stores. They back the
// gateway when no database is configured and serve as fakes in tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

// Rules is an in-memory rule.Repository.
type Rules struct {
	mu     sync.RWMutex
	rules  map[int64]rule.Rule
	nextID int64
	now    func() time.Time
}

// NewRules creates a repository seeded with rules. Seeded rules keep their
// ids when set; the rest are assigned fresh ones.
func NewRules(seed ...rule.Rule) *Rules {
	s := &Rules{
		rules: make(map[int64]rule.Rule),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, r := range seed {
		if r.ID > s.nextID {
			s.nextID = r.ID
		}
	}
	for _, r := range seed {
		if r.ID == 0 {
			s.nextID++
			r.ID = s.nextID
		}
		ts := s.now()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = ts
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = ts
		}
		s.rules[r.ID] = r
	}
	return s
}

func (s *Rules) ListEnabled(_ context.Context) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, rule.ByPriority)
	return out, nil
}

func (s *Rules) List(_ context.Context) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	slices.SortFunc(out, rule.ByPriority)
	return out, nil
}

func (s *Rules) Get(_ context.Context, id int64) (*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, rule.ErrNotFound
	}
	return &r, nil
}

func (s *Rules) Create(_ context.Context, r rule.Rule) (*rule.Rule, error) {
	if err := rule.Validate(&r); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	s.rules[r.ID] = r
	return &r, nil
}

func (s *Rules) Update(_ context.Context, id int64, r rule.Rule) (*rule.Rule, error) {
	if err := rule.Validate(&r); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rules[id]
	if !ok {
		return nil, rule.ErrNotFound
	}
	r.ID = id
	r.CreatedAt = cur.CreatedAt
	r.UpdatedAt = s.now()
	s.rules[id] = r
	return &r, nil
}

func (s *Rules) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return rule.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *Rules) Toggle(_ context.Context, id int64) (*rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, rule.ErrNotFound
	}
	r.Enabled = !r.Enabled
	r.UpdatedAt = s.now()
	s.rules[id] = r
	return &r, nil
}
