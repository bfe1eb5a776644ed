package task

import (
	"context"

	"github.com/coldeck/mrcore/internal/cluster"
	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/errors"
	"github.com/coldeck/mrcore/internal/future"
	"github.com/coldeck/mrcore/internal/rpc"
)

// dispatchPayload is what crosses the wire to a peer node in the
// distributed fan-out: the cloned descriptor/state and the node's narrowed
// [nlo,nhi) range, but -- unlike a same-node localForkClone -- no cloud or
// transport handle, since those are bound to the sender, not the
// recipient. The receiving node re-binds both to its own view before
// running (see Handler).
type dispatchPayload struct {
	desc  *Descriptor
	state interface{}
	nlo   int
	nhi   int
	lo    int
	hi    int
}

// remoteReply is what a peer node sends back. Unlike reduce2, a remote ACK
// has no task identity to hand back across the wire -- only the bit the
// parent actually needs, its combinable state -- so the reply carries
// that plus the sentinel for "no local result".
type remoteReply struct {
	noResult bool
	state    interface{}
}

// rpcCall pairs a dispatched RPC handle with the peer it was sent to, so a
// zero-value rpcCall (no dispatch happened) safely no-ops cancel/reduce3.
type rpcCall struct {
	handle rpc.Handle
	peer   int
}

func (c rpcCall) cancel() {
	if c.handle != nil {
		c.handle.Cancel()
	}
}

// runNode is the top-local instance's logic: SETUP (Init, once per node) ->
// distributed fan-out over [nlo,nhi) -> local fan-out over [lo,hi) ->
// postLocal (block on remote ACKs and pending output futures). It runs
// once on the invoking node (from Run) and once per node reached by a
// remote dispatch (from the rpc Handler).
func (t *Task) runNode(ctx context.Context) (*remoteReply, error) {
	if err := t.fsm.transition(StateSetup); err != nil {
		return nil, err
	}
	if t.desc.Hooks.Init != nil {
		if err := t.desc.Hooks.Init(ctx, t.cloud.Node(t.cloud.Self())); err != nil {
			t.coord.fail(err)
			return nil, err
		}
	}

	self := t.cloud.Self()
	var left, rite rpcCall

	if t.nhi-t.nlo > 1 {
		if t.nlo < self {
			mid := (t.nlo + self) >> 1
			left = t.dispatch(ctx, mid, t.nlo, self)
		}
		if self+1 < t.nhi {
			mid := (self + 1 + t.nhi) >> 1
			rite = t.dispatch(ctx, mid, self+1, t.nhi)
		}
	}
	if err := t.fsm.transition(StateFannedOut); err != nil {
		return nil, err
	}

	if localErr := t.runLocal(ctx); localErr != nil {
		t.coord.fail(localErr)
		left.cancel()
		rite.cancel()
		return nil, localErr
	}

	if err := t.postLocal(ctx, left, rite); err != nil {
		return nil, err
	}

	if err := t.fsm.transition(StatePostLocalDone); err != nil {
		return nil, err
	}
	if err := t.fsm.transition(StateComplete); err != nil {
		return nil, err
	}

	return &remoteReply{noResult: !t.hasResult, state: t.state}, nil
}

// postLocal runs the top-local-only steps: block on each remote RPC in
// turn, then block on every pending output-vector future. Any failure
// here cancels the sibling RPC and propagates.
func (t *Task) postLocal(ctx context.Context, left, rite rpcCall) error {
	if err := t.reduce3(ctx, left); err != nil {
		t.coord.fail(err)
		rite.cancel()
		return err
	}
	if err := t.reduce3(ctx, rite); err != nil {
		t.coord.fail(err)
		return err
	}
	if err := t.futures.Wait(ctx); err != nil {
		t.coord.fail(err)
		return err
	}
	return nil
}

// reduce3 blocks on call and folds its reply into t, skipping the
// "no local result" sentinel.
func (t *Task) reduce3(ctx context.Context, call rpcCall) error {
	if call.handle == nil {
		return nil
	}
	raw, err := call.handle.Get(ctx)
	if err != nil {
		return err
	}
	reply, ok := raw.(*remoteReply)
	if !ok {
		return errors.Errorf("task: malformed reply from node %d", call.peer)
	}
	if reply.noResult {
		return nil
	}
	return t.adopt(true, reply.state)
}

func (t *Task) dispatch(ctx context.Context, peer, nlo, nhi int) rpcCall {
	payload := &dispatchPayload{
		desc:  t.desc,
		state: t.cloneState(),
		nlo:   nlo,
		nhi:   nhi,
		lo:    t.lo,
		hi:    t.hi,
	}
	debug.Log("dispatching node range [%d,%d) to peer %d", nlo, nhi, peer)
	handle := t.transport.Call(ctx, t.cloud.Node(peer), payload)
	return rpcCall{handle: handle, peer: peer}
}

// Handler returns the rpc.Handler a node registers with its transport to
// receive dispatched sub-trees: it rebinds the incoming payload to
// nodeCloud (this node's own membership view, with Self() equal to its own
// index) and runs runNode exactly as the invoking node did for the root.
func Handler(nodeCloud cluster.Cloud, transport rpc.Transport) rpc.Handler {
	return func(ctx context.Context, payload interface{}) (interface{}, error) {
		p, ok := payload.(*dispatchPayload)
		if !ok {
			return nil, errors.Errorf("task: unexpected payload type %T", payload)
		}

		cctx, coord := newCoordinator(ctx)
		clone := &Task{
			desc:      p.desc,
			state:     p.state,
			cloud:     nodeCloud,
			transport: transport,
			coord:     coord,
			nlo:       p.nlo,
			nhi:       p.nhi,
			lo:        p.lo,
			hi:        p.hi,
			topLocal:  true,
			futures:   &future.Set{},
			fsm:       newMachine(),
		}

		return clone.runNode(cctx)
	}
}
