package task

import (
	"context"

	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/ids"
	"github.com/coldeck/mrcore/internal/vector"
)

// runLocal implements the local fork/join split: given the instance's
// local chunk range [lo,hi), split until single-chunk leaves, forking the
// left half to a goroutine and computing the right half inline for cache
// locality, then reduce both into this instance.
func (t *Task) runLocal(ctx context.Context) error {
	lo, hi := t.lo, t.hi

	switch {
	case hi == lo:
		return nil

	case hi-lo == 1:
		if err := t.fsm.transition(StateMapped); err != nil {
			return err
		}
		if err := t.mapLeaf(ctx, lo); err != nil {
			return err
		}
		return t.fsm.transition(StateReduced)

	default:
		if err := t.fsm.transition(StateSplit); err != nil {
			return err
		}

		mid := (lo + hi) >> 1
		left := t.localForkClone(lo, mid)
		rite := t.localForkClone(mid, hi)

		done := make(chan error, 1)
		go func() { done <- left.runLocal(ctx) }()

		riteErr := rite.runLocal(ctx)

		var leftErr error
		select {
		case leftErr = <-done:
		case <-ctx.Done():
			leftErr = ctx.Err()
			<-done // still wait for the forked goroutine: no goroutine left running unattended
		}

		if leftErr != nil {
			t.coord.fail(leftErr)
			return leftErr
		}
		if riteErr != nil {
			t.coord.fail(riteErr)
			return riteErr
		}

		if err := t.reduce2(left); err != nil {
			t.coord.fail(err)
			return err
		}
		if err := t.reduce2(rite); err != nil {
			t.coord.fail(err)
			return err
		}
		if err := t.fsm.transition(StateReduced); err != nil {
			return err
		}
		return nil
	}
}

// mapLeaf implements the hi-lo==1 case of runLocal: decode a ChunkView
// per input vector at cidx and invoke the matching map overload if this
// chunk is homed here, otherwise skip silently.
func (t *Task) mapLeaf(ctx context.Context, cidx int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vecs := t.desc.Vectors
	key := vecs[0].ChunkKey(cidx)
	self, size := t.cloud.Self(), t.cloud.Size()

	if !ids.IsHome(key, self, size) {
		debug.Log("chunk %d (key %s) not homed on node %d; skipping", cidx, key.Hex(), self)
		return nil
	}

	startRow := vecs[0].Chunk2StartElem(cidx)

	views := make([]*vector.ChunkView, len(vecs))
	for i, v := range vecs {
		view, err := v.Elem2BV(ctx, startRow, cidx)
		if err != nil {
			return err
		}
		views[i] = view
	}
	if views[0] == nil {
		// fat tail already swallowed this would-be chunk; nothing to map.
		return nil
	}

	var err error
	switch len(vecs) {
	case 1:
		if t.desc.Hooks.Map1 != nil {
			err = t.desc.Hooks.Map1(ctx, t.state, startRow, views[0].Len, views[0])
		}
	case 2:
		if t.desc.Hooks.Map2 != nil {
			err = t.desc.Hooks.Map2(ctx, t.state, startRow, views[0].Len, views[0], views[1])
		}
	}
	if err != nil {
		return err
	}

	t.hasResult = true
	return nil
}
