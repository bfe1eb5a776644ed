// Package rpc defines the call/get/cancel transport contract the
// distributed fan-out consumes, and provides an in-process transport used
// for tests and for cmd/mrbench's single-binary demo mode. A real network
// transport is someone else's problem; this package only pins down the
// shape the task engine programs against.
package rpc

import (
	"context"

	"github.com/coldeck/mrcore/internal/cluster"
)

// Handle is a single outstanding RPC. Get blocks until the peer responds
// (or ctx is done); Cancel attempts to abort the call in flight.
type Handle interface {
	Get(ctx context.Context) (interface{}, error)
	Cancel()
}

// Transport dispatches payload to peer and returns a Handle for the
// response. Implementations must deliver the peer's error (if any) through
// Handle.Get rather than swallowing it.
type Transport interface {
	Call(ctx context.Context, peer cluster.Node, payload interface{}) Handle
}
