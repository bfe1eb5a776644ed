// Package kv implements the node-local concurrent key/value store the
// map/reduce core consumes: put/get/putIfMatch over chunk-key bytes, with
// compare-and-swap so duplicate materialization races resolve
// deterministically. The distributed key/value tier a real cluster would
// run is out of scope for this package; it is the node-local cache every
// node runs, and is where appendable output vectors (internal/vector)
// publish their chunks.
package kv

import "github.com/puzpuzpuz/xsync/v3"

// Store is a concurrent map keyed by chunk-key bytes. V must be comparable
// so PutIfMatch can compare the stored value against a caller-supplied
// expectation without a bespoke equality function -- in practice V is
// always a pointer type (e.g. vector's *chunk), so comparison is by identity.
type Store[V comparable] struct {
	m *xsync.MapOf[string, V]
}

// New returns an empty store.
func New[V comparable]() *Store[V] {
	return &Store[V]{m: xsync.NewMapOf[string, V]()}
}

// Get returns the value stored under key, if any.
func (s *Store[V]) Get(key []byte) (V, bool) {
	return s.m.Load(string(key))
}

// Put unconditionally stores value under key.
func (s *Store[V]) Put(key []byte, value V) {
	s.m.Store(string(key), value)
}

// PutIfAbsent stores value under key if nothing is stored there yet.
// It returns the value now stored under key -- value if this call won the
// race, or whatever another goroutine already published -- and whether
// this call's value won. AppendableVector.Publish uses it to publish each
// chunk, and reports an error when the chunk index was already published.
func (s *Store[V]) PutIfAbsent(key []byte, value V) (actual V, stored bool) {
	actual, loaded := s.m.LoadOrStore(string(key), value)
	return actual, !loaded
}

// PutIfMatch stores newValue under key only if the value currently stored
// there (or the zero value, if absent) equals old. It returns the value
// left under key and whether the swap happened.
func (s *Store[V]) PutIfMatch(key []byte, newValue, old V) (actual V, swapped bool) {
	k := string(key)
	actual, _ = s.m.Compute(k, func(oldValue V, loaded bool) (V, bool) {
		if loaded {
			if oldValue != old {
				return oldValue, false
			}
			swapped = true
			return newValue, false
		}
		var zero V
		if old != zero {
			return zero, true // no existing entry and old isn't the zero value: no match, stay absent
		}
		swapped = true
		return newValue, false
	})
	return actual, swapped
}

// Delete removes key, if present.
func (s *Store[V]) Delete(key []byte) {
	s.m.Delete(string(key))
}

// Len reports the number of entries currently stored.
func (s *Store[V]) Len() int {
	return s.m.Size()
}
