package reaction

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/metrics"
)

// Listener receives pushed notifications.
type Listener func(n event.Notification) error

type listenerEntry struct {
	id uint64
	fn Listener
}

// Listeners is a copy-on-write registry of live listeners. Dispatch iterates
// an immutable snapshot, so registration churn never blocks or tears an
// in-flight dispatch; writers serialise on a mutex and swap the snapshot.
type Listeners struct {
	mu     sync.Mutex
	nextID uint64
	list   atomic.Pointer[[]listenerEntry]
}

// NewListeners creates an empty registry.
func NewListeners() *Listeners {
	l := &Listeners{}
	l.list.Store(&[]listenerEntry{})
	return l
}

// Register adds fn and returns a function that removes it. The returned
// function is idempotent.
func (l *Listeners) Register(fn Listener) (unregister func()) {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	cur := *l.list.Load()
	next := make([]listenerEntry, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, listenerEntry{id: id, fn: fn})
	l.list.Store(&next)
	metrics.LiveListeners.Set(float64(len(next)))
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.remove(id) }) }
}

func (l *Listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := *l.list.Load()
	next := make([]listenerEntry, 0, len(cur))
	for _, e := range cur {
		if e.id != id {
			next = append(next, e)
		}
	}
	l.list.Store(&next)
	metrics.LiveListeners.Set(float64(len(next)))
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	return len(*l.list.Load())
}

// Notify invokes every listener registered when the call began. A failing or
// panicking listener is reported through onErr and does not stop the rest.
// It returns the number of listeners that accepted the notification.
func (l *Listeners) Notify(n event.Notification, onErr func(error)) int {
	snapshot := *l.list.Load()
	delivered := 0
	for _, e := range snapshot {
		if err := invoke(e.fn, n); err != nil {
			if onErr != nil {
				onErr(err)
			}
			continue
		}
		delivered++
	}
	return delivered
}

func invoke(fn Listener, n event.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(n)
}
