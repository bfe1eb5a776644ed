package task

import (
	"context"
	"sync"

	"github.com/coldeck/mrcore/internal/cluster"
	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/future"
	"github.com/coldeck/mrcore/internal/rpc"
)

// coordinator is shared by every clone of a single task invocation that
// lives on the same node (local fork/join children), so that the first
// fault observed anywhere cancels the shared context and every other
// in-flight clone stops starting new map() calls: no further map is
// started once a fault has been observed.
type coordinator struct {
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func newCoordinator(ctx context.Context) (context.Context, *coordinator) {
	cctx, cancel := context.WithCancel(ctx)
	return cctx, &coordinator{cancel: cancel}
}

func (c *coordinator) fail(err error) {
	c.once.Do(func() {
		c.err = err
		c.cancel()
	})
}

// Task is one instance of the fork/join completion tree. A root instance
// is constructed by Run; every other instance is produced by
// localForkClone (same-node children) or received as a dispatchPayload
// rehydrated on a peer node.
type Task struct {
	desc  *Descriptor
	state interface{}

	cloud     cluster.Cloud
	transport rpc.Transport
	coord     *coordinator

	nlo, nhi int
	lo, hi   int
	topLocal bool

	hasResult bool
	futures   *future.Set
	fsm       *machine
}

// localForkClone produces a same-node child for a local fork/join split: a
// fresh completion counter (futures set), an independent copy of the user
// state, topLocal always false (only the node's own top-level instance is
// topLocal), sharing the parent's coordinator/cloud/transport since this
// child never leaves the node. The child's lifecycle starts at FANNED_OUT:
// SETUP and the distributed fan-out run only on the top-local instance.
func (t *Task) localForkClone(lo, hi int) *Task {
	return &Task{
		desc:      t.desc,
		state:     t.cloneState(),
		cloud:     t.cloud,
		transport: t.transport,
		coord:     t.coord,
		nlo:       t.nlo,
		nhi:       t.nhi,
		lo:        lo,
		hi:        hi,
		topLocal:  false,
		futures:   &future.Set{},
		fsm:       &machine{current: StateFannedOut},
	}
}

func (t *Task) cloneState() interface{} {
	if t.desc.Hooks.CloneState == nil {
		return t.state
	}
	return t.desc.Hooks.CloneState(t.state)
}

// reduce2 folds child's outcome into t: adopt the child's result verbatim
// if this instance has none yet, otherwise combine via the user Reduce
// hook; either way, merge the child's pending futures. A nil child is a
// no-op (used when a local fork/join branch turned out empty).
func (t *Task) reduce2(child *Task) error {
	if child == nil {
		return nil
	}

	if err := t.adopt(child.hasResult, child.state); err != nil {
		return err
	}
	t.futures.Merge(child.futures)
	return nil
}

// adopt is reduce2/reduce3's shared "adopt-or-combine" step: if this
// instance has no result yet, take the other side's verbatim; otherwise
// combine via the user Reduce hook, only when the other side actually has
// a result.
func (t *Task) adopt(otherHasResult bool, otherState interface{}) error {
	if !t.hasResult {
		t.hasResult = otherHasResult
		t.state = otherState
		return nil
	}
	if !otherHasResult {
		return nil
	}
	if t.desc.Hooks.Reduce == nil {
		debug.Log("task: two results to combine but no Reduce hook configured; keeping the first")
		return nil
	}
	return t.desc.Hooks.Reduce(t.state, otherState)
}
