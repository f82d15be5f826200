// Package filestore serves the rule set from a YAML file and hot-reloads it
// when the file changes. Rules managed this way are read-only over the API.
package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
	"github.com/gyaneshwarpardhi/fraudgate/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

// File is the on-disk layout.
type File struct {
	Version string     `yaml:"version"`
	Rules   []FileRule `yaml:"rules"`
}

// FileRule is one rule entry. Enabled defaults to true and priority to 100.
type FileRule struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Enabled      *bool  `yaml:"enabled"`
	Priority     *int   `yaml:"priority"`
	FieldPath    string `yaml:"field_path"`
	Operator     string `yaml:"operator"`
	Value        string `yaml:"value"`
	ActionType   string `yaml:"action_type"`
	ActionConfig string `yaml:"action_config"`
}

// Store is a read-only rule.Repository backed by a YAML file.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	rules    []rule.Rule
	loadedAt time.Time
	onChange []func([]rule.Rule)
}

// Open loads path. The file must exist and validate.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: filepath.Clean(path), logger: logger}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// OnChange registers a callback invoked after every successful reload.
func (s *Store) OnChange(fn func([]rule.Rule)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Reload re-reads the file. On failure the previous rule set stays active.
func (s *Store) Reload() ([]rule.Rule, error) {
	rules, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.rules = rules
	s.loadedAt = time.Now()
	callbacks := make([]func([]rule.Rule), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(rules)
	}
	return rules, nil
}

// Watch reloads the rule set whenever the file is written or replaced. The
// parent directory is watched so editors that rename over the file are seen.
// Call the returned stop function to clean up.
func (s *Store) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rule file watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("rule file watcher add %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					rules, err := s.Reload()
					if err != nil {
						metrics.RuleFileReloads.WithLabelValues("error").Inc()
						s.logger.Warn("rule file reload failed, keeping previous rules", "path", s.path, "err", err)
						continue
					}
					metrics.RuleFileReloads.WithLabelValues("success").Inc()
					s.logger.Info("rule file reloaded", "path", s.path, "rules", len(rules))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("rule file watcher error", "path", s.path, "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Load parses and validates a rule file.
func Load(path string) ([]rule.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	rules := f.toRules()
	if err := rule.ValidateAll(rules); err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return rules, nil
}

// toRules applies defaults and assigns ids to entries without one, after the
// highest explicit id.
func (f *File) toRules() []rule.Rule {
	var maxID int64
	for _, fr := range f.Rules {
		maxID = max(maxID, fr.ID)
	}
	out := make([]rule.Rule, 0, len(f.Rules))
	for _, fr := range f.Rules {
		r := rule.Rule{
			ID:           fr.ID,
			Name:         fr.Name,
			Description:  fr.Description,
			Enabled:      true,
			Priority:     rule.DefaultPriority,
			FieldPath:    fr.FieldPath,
			Operator:     condition.Operator(fr.Operator),
			Value:        fr.Value,
			ActionType:   rule.ActionKind(fr.ActionType),
			ActionConfig: fr.ActionConfig,
		}
		if op, ok := condition.ParseOperator(fr.Operator); ok {
			r.Operator = op
		}
		if fr.Enabled != nil {
			r.Enabled = *fr.Enabled
		}
		if fr.Priority != nil {
			r.Priority = *fr.Priority
		}
		if r.ID == 0 {
			maxID++
			r.ID = maxID
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) snapshot() ([]rule.Rule, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rule.Rule, len(s.rules))
	copy(out, s.rules)
	return out, s.loadedAt
}

func (s *Store) ListEnabled(_ context.Context) ([]rule.Rule, error) {
	all, ts := s.snapshot()
	out := all[:0]
	for _, r := range all {
		if r.Enabled {
			r.CreatedAt, r.UpdatedAt = ts, ts
			out = append(out, r)
		}
	}
	slices.SortFunc(out, rule.ByPriority)
	return out, nil
}

func (s *Store) List(_ context.Context) ([]rule.Rule, error) {
	all, ts := s.snapshot()
	for i := range all {
		all[i].CreatedAt, all[i].UpdatedAt = ts, ts
	}
	slices.SortFunc(all, rule.ByPriority)
	return all, nil
}

func (s *Store) Get(_ context.Context, id int64) (*rule.Rule, error) {
	all, ts := s.snapshot()
	for _, r := range all {
		if r.ID == id {
			r.CreatedAt, r.UpdatedAt = ts, ts
			return &r, nil
		}
	}
	return nil, fmt.Errorf("rule %d: %w", id, rule.ErrNotFound)
}

func (s *Store) Create(context.Context, rule.Rule) (*rule.Rule, error) {
	return nil, s.readOnly()
}

func (s *Store) Update(context.Context, int64, rule.Rule) (*rule.Rule, error) {
	return nil, s.readOnly()
}

func (s *Store) Delete(context.Context, int64) error {
	return s.readOnly()
}

func (s *Store) Toggle(context.Context, int64) (*rule.Rule, error) {
	return nil, s.readOnly()
}

func (s *Store) readOnly() error {
	return fmt.Errorf("rules are managed in %s: %w", s.path, rule.ErrReadOnly)
}
