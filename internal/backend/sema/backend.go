package sema

import (
	"context"
	"io"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/errors"
)

// make sure that connectionLimitedBackend implements backend.Backend
var _ backend.Backend = &connectionLimitedBackend{}

// connectionLimitedBackend limits the number of concurrent operations
// against the underlying backend to be.Connections(), so a chunk fan-out
// that targets an object store doesn't open more sockets than the store's
// client allows.
type connectionLimitedBackend struct {
	backend.Backend
	sem Semaphore
}

// NewBackend creates a backend that limits the concurrent operations on the underlying backend.
func NewBackend(be backend.Backend) backend.Backend {
	sem, err := New(be.Connections())
	if err != nil {
		panic(err)
	}

	return &connectionLimitedBackend{
		Backend: be,
		sem:     sem,
	}
}

// Save adds new data to the backend.
func (be *connectionLimitedBackend) Save(ctx context.Context, key []byte, rd backend.RewindReader) error {
	be.sem.GetToken()
	defer be.sem.ReleaseToken()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return be.Backend.Save(ctx, key, rd)
}

// Load runs fn with a reader that yields the contents stored under key at
// the given offset.
func (be *connectionLimitedBackend) Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
	if offset < 0 {
		return errors.New("offset is negative")
	}
	if length < 0 {
		return errors.Errorf("invalid length %d", length)
	}

	be.sem.GetToken()
	defer be.sem.ReleaseToken()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return be.Backend.Load(ctx, key, length, offset, fn)
}

// Stat returns information about the value stored under key.
func (be *connectionLimitedBackend) Stat(ctx context.Context, key []byte) (backend.FileInfo, error) {
	be.sem.GetToken()
	defer be.sem.ReleaseToken()

	if ctx.Err() != nil {
		return backend.FileInfo{}, ctx.Err()
	}

	return be.Backend.Stat(ctx, key)
}

// Remove deletes the value stored under key.
func (be *connectionLimitedBackend) Remove(ctx context.Context, key []byte) error {
	be.sem.GetToken()
	defer be.sem.ReleaseToken()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return be.Backend.Remove(ctx, key)
}

func (be *connectionLimitedBackend) Unwrap() backend.Backend {
	return be.Backend
}
