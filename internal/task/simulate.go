package task

import (
	"github.com/coldeck/mrcore/internal/cluster"
	"github.com/coldeck/mrcore/internal/rpc"
)

// SimulatedCluster stands up an in-process cluster of n simulated nodes
// sharing one rpc.LocalTransport, for tests and for cmd/mrbench's
// single-binary demo mode. Node 0 is the caller's entrypoint: pass
// Clouds[0] and Transport to Run.
type SimulatedCluster struct {
	Clouds    []cluster.LocalCloud
	Transport *rpc.LocalTransport
}

// NewSimulatedCluster wires n nodes: each gets its own LocalCloud view
// (Self() == its index) and a Handler registered under that index, so a
// dispatch landing on node i reruns the dispatched sub-tree against node
// i's own view, exactly as a peer receiving a remote dispatch would.
func NewSimulatedCluster(n int) *SimulatedCluster {
	base := cluster.LocalCloud{N: n}
	transport := rpc.NewLocalTransport()

	sc := &SimulatedCluster{
		Clouds:    make([]cluster.LocalCloud, n),
		Transport: transport,
	}
	for i := 0; i < n; i++ {
		sc.Clouds[i] = base.ForNode(i)
	}
	for i := 0; i < n; i++ {
		transport.Register(i, Handler(sc.Clouds[i], transport))
	}

	return sc
}
