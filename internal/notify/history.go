// Package notify keeps a bounded history of pushed notifications and bridges
// live pushes to websocket clients.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
)

// DefaultMaxHistory bounds the history when no limit is configured.
const DefaultMaxHistory = 500

// History is an append-only, bounded notification log. The oldest entries
// are evicted once the bound is reached.
type History interface {
	Append(ctx context.Context, n event.Notification) error
	// Recent returns up to limit of the newest notifications, oldest first.
	// A non-positive limit returns everything retained.
	Recent(ctx context.Context, limit int) ([]event.Notification, error)
}

// MemoryHistory is a fixed-size ring buffer.
type MemoryHistory struct {
	mu    sync.RWMutex
	buf   []event.Notification
	start int
	size  int
}

// NewMemoryHistory creates a ring holding at most capacity notifications.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = DefaultMaxHistory
	}
	return &MemoryHistory{buf: make([]event.Notification, capacity)}
}

func (h *MemoryHistory) Append(_ context.Context, n event.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = n
		h.size++
		return nil
	}
	h.buf[h.start] = n
	h.start = (h.start + 1) % len(h.buf)
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]event.Notification, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := h.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]event.Notification, 0, n)
	for i := h.size - n; i < h.size; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out, nil
}

// Recorder returns a listener that appends every pushed notification to h.
func Recorder(h History, logger *slog.Logger) reaction.Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(n event.Notification) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.Append(ctx, n); err != nil {
			logger.Warn("notification history append failed", "notification_id", n.ID, "err", err)
			return err
		}
		return nil
	}
}
