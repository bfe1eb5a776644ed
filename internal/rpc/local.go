package rpc

import (
	"context"
	"sync"

	"github.com/coldeck/mrcore/internal/cluster"
	"github.com/coldeck/mrcore/internal/errors"
)

// Handler processes a payload dispatched to this node and returns the
// reply (or an error, propagated back to the caller's Handle.Get).
type Handler func(ctx context.Context, payload interface{}) (interface{}, error)

// LocalTransport simulates a cluster of peer nodes within one process: each
// node index is registered with its own Handler, and Call runs that
// handler on a new goroutine, exactly as a real RPC layer would hand the
// request to a worker on the remote node.
type LocalTransport struct {
	mu       sync.RWMutex
	handlers map[int]Handler
}

// NewLocalTransport returns a transport with no nodes registered yet.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{handlers: make(map[int]Handler)}
}

// Register binds nodeIdx's handler. Call on an index with no registered
// handler does not run anything: it returns a Handle whose Get reports a
// "no handler registered" error.
func (t *LocalTransport) Register(nodeIdx int, h Handler) {
	t.mu.Lock()
	t.handlers[nodeIdx] = h
	t.mu.Unlock()
}

func (t *LocalTransport) Call(ctx context.Context, peer cluster.Node, payload interface{}) Handle {
	t.mu.RLock()
	h, ok := t.handlers[peer.Index()]
	t.mu.RUnlock()

	cctx, cancel := context.WithCancel(ctx)
	handle := &localHandle{done: make(chan struct{}), cancel: cancel}

	if !ok {
		cancel()
		handle.err = errors.Errorf("rpc: no handler registered for node %d", peer.Index())
		close(handle.done)
		return handle
	}

	go func() {
		defer close(handle.done)
		handle.result, handle.err = h(cctx, payload)
	}()

	return handle
}

type localHandle struct {
	done   chan struct{}
	cancel context.CancelFunc
	result interface{}
	err    error
}

func (h *localHandle) Get(ctx context.Context) (interface{}, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *localHandle) Cancel() {
	h.cancel()
}

var _ Transport = &LocalTransport{}
