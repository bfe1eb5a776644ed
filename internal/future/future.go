// Package future implements the small blocking handles the map/reduce core
// waits on: remote RPC acknowledgements (internal/rpc) and pending
// output-vector publication work queued while a chunk's map() runs.
package future

import (
	"context"
	"sync"
)

// Future resolves exactly once, either with an error or with nil for
// success. It is the currency the task engine waits on without blocking
// its own goroutine budget past what the caller asked for.
type Future struct {
	done chan struct{}
	err  error
}

// New returns an unresolved future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete resolves f. Calling it more than once panics, matching the
// single-producer contract every caller in this module relies on.
func (f *Future) Complete(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until f resolves or ctx is done, whichever comes first.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports whether f has resolved without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Set is an unordered, growable collection of futures a task accumulates
// as it runs and drains once, after its local work completes. Merge lets
// a parent fold a child's pending set into its own when reducing a child.
type Set struct {
	mu   sync.Mutex
	list []*Future
}

// Add registers f with the set.
func (s *Set) Add(f *Future) {
	s.mu.Lock()
	s.list = append(s.list, f)
	s.mu.Unlock()
}

// Merge folds other's futures into s. A nil receiver or argument is a
// no-op, so callers don't need to nil-check a not-yet-populated set.
func (s *Set) Merge(other *Set) {
	if s == nil || other == nil {
		return
	}
	other.mu.Lock()
	items := append([]*Future(nil), other.list...)
	other.mu.Unlock()

	s.mu.Lock()
	s.list = append(s.list, items...)
	s.mu.Unlock()
}

// Wait blocks on every future in the set, in registration order, and
// returns the first error encountered (if any). A nil receiver is
// considered already satisfied.
func (s *Set) Wait(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	items := append([]*Future(nil), s.list...)
	s.mu.Unlock()

	for _, f := range items {
		if err := f.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many futures are currently registered.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}
