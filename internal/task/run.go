package task

import (
	"context"

	"github.com/coldeck/mrcore/internal/cluster"
	"github.com/coldeck/mrcore/internal/future"
	"github.com/coldeck/mrcore/internal/rpc"
)

// Result is what Run hands back: whether the job produced a combined
// result at all (a cluster can legitimately fan out over zero chunks) and,
// if so, the user's reduced state.
type Result struct {
	HasResult bool
	State     interface{}
}

// Run is the single entrypoint of a job: validate the descriptor, check
// chunk alignment across every input vector before any node is touched,
// then drive the distributed/local fan-out tree to completion from the
// invoking node, and finally close every appendable output -- the
// top-level instance, and only it, closes the job's output vectors.
func Run(ctx context.Context, cloud cluster.Cloud, transport rpc.Transport, desc *Descriptor) (*Result, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}

	cctx, coord := newCoordinator(ctx)
	root := &Task{
		desc:      desc,
		state:     desc.State,
		cloud:     cloud,
		transport: transport,
		coord:     coord,
		nlo:       0,
		nhi:       cloud.Size(),
		lo:        0,
		hi:        desc.nChunks(),
		topLocal:  true,
		futures:   &future.Set{},
		fsm:       newMachine(),
	}

	reply, err := root.runNode(cctx)
	if err != nil {
		return nil, err
	}

	for _, out := range desc.Outputs {
		if closeErr := out.Close(); closeErr != nil {
			return nil, closeErr
		}
	}

	return &Result{HasResult: !reply.noResult, State: reply.state}, nil
}
