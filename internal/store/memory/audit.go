package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/audit"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

// Audit is an in-memory audit.Store and audit.Reader.
type Audit struct {
	mu      sync.RWMutex
	records []audit.Record
	fail    error
}

// NewAudit creates an empty audit trail.
func NewAudit() *Audit {
	return &Audit{}
}

// FailWith makes every Append return err (nil clears it).
func (a *Audit) FailWith(err error) {
	a.mu.Lock()
	a.fail = err
	a.mu.Unlock()
}

func (a *Audit) Append(_ context.Context, rec audit.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	rec.ID = int64(len(a.records) + 1)
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	a.records = append(a.records, rec)
	return nil
}

// Records returns every record in append order.
func (a *Audit) Records() []audit.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]audit.Record, len(a.records))
	copy(out, a.records)
	return out
}

func (a *Audit) List(_ context.Context, page, size int) (*audit.Page, error) {
	if page < 0 || size <= 0 {
		return nil, errors.New("page must be >= 0 and size > 0")
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	total := len(a.records)
	p := &audit.Page{Page: page, Size: size, Total: int64(total), Records: []audit.Record{}}
	// newest first: walk the append log backwards
	start := total - 1 - page*size
	for i := start; i >= 0 && i > start-size; i-- {
		p.Records = append(p.Records, a.records[i])
	}
	return p, nil
}

func (a *Audit) Stats(_ context.Context, since time.Time) (*audit.Stats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := &audit.Stats{Total: int64(len(a.records))}
	for _, r := range a.records {
		if !r.ProcessedAt.Before(since) {
			s.Last24Hours++
		}
		if r.RulesMatched > 0 {
			s.Flagged++
		} else {
			s.Clean++
		}
		if r.FinalAction == rule.ActionBlock {
			s.Blocked++
		}
	}
	s.ComputeFlagRate()
	return s, nil
}
