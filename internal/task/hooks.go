// Package task implements the map/reduce execution core: the task
// descriptor, the distributed and local fan-out trees, and
// completion/reduction.
package task

import (
	"context"

	"github.com/coldeck/mrcore/internal/cluster"
	"github.com/coldeck/mrcore/internal/errors"
	"github.com/coldeck/mrcore/internal/vector"
)

// Hooks is the user contract of a job, modeled as a capability struct --
// a set of function hooks on a task value -- rather than an interface
// with nil checks scattered through the scheduler. Any hook may be left
// nil; a nil hook is a no-op.
type Hooks struct {
	// Init is called once per node, before any local chunk is touched, to
	// set up node-local shared state. It happens-before any map call on
	// that node.
	Init func(ctx context.Context, self cluster.Node) error

	// Map1 handles the single-input-vector overload.
	Map1 func(ctx context.Context, state interface{}, startRow, length int, a *vector.ChunkView) error

	// Map2 handles the two-input-vector overload.
	Map2 func(ctx context.Context, state interface{}, startRow, length int, a, b *vector.ChunkView) error

	// Reduce associatively combines src into dst. It may assume src is
	// non-nil and of the same dynamic type as dst: callers always check
	// for a nil partner first and simply adopt the non-nil side.
	Reduce func(dst, src interface{}) error

	// CloneState returns an independent copy of state for a forked or
	// dispatched child: each fork clones the task descriptor and
	// shallow-copies the user state. Required whenever a task actually
	// forks (i.e. whenever more than one chunk or more than one node is
	// in scope).
	CloneState func(state interface{}) interface{}
}

// Descriptor is the user-supplied job: hooks, input vectors, and any
// appendable/materialized output vectors the hooks populate.
type Descriptor struct {
	Hooks   Hooks
	Vectors []vector.Vector
	Outputs []*vector.AppendableVector
	State   interface{}
}

// validate enforces the descriptor's configuration errors: three or more
// input vectors is a configuration error, and the arity of Map1/Map2 must
// match the number of input vectors supplied.
func (d *Descriptor) validate() error {
	switch len(d.Vectors) {
	case 0:
		return errors.Fatal("task: at least one input vector is required")
	case 1:
		if d.Hooks.Map1 == nil {
			return errors.Fatal("task: one input vector given but no Map1 hook")
		}
	case 2:
		if d.Hooks.Map2 == nil {
			return errors.Fatal("task: two input vectors given but no Map2 hook")
		}
	default:
		return errors.Fatalf("task: %d input vectors given, at most 2 are supported", len(d.Vectors))
	}

	if err := vector.CheckAlignment(d.Vectors...); err != nil {
		return err
	}

	return nil
}

func (d *Descriptor) nChunks() int {
	for _, v := range d.Vectors {
		if !v.Writable() {
			return v.NChunks()
		}
	}
	return 0
}
