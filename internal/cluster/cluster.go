// Package cluster defines the cluster-membership contract the map/reduce
// core consumes. Membership discovery and maintenance are someone else's
// problem: the module only ever asks a Cloud for its size, its own index,
// and a peer handle by index.
package cluster

// Node is a peer handle the distributed fan-out dispatches RPCs to.
type Node interface {
	// Index is this node's position in its Cloud, stable for the
	// lifetime of a single task invocation.
	Index() int
}

// Cloud is the cluster-membership view a task invocation runs against.
type Cloud interface {
	// Self returns the index of the local node within this Cloud.
	Self() int

	// Size returns the number of nodes in the cluster.
	Size() int

	// Node returns the peer handle at index i.
	Node(i int) Node
}
