// Package backend defines the chunk-backing store contract: a uniform
// Load/Save/Stat/Remove surface that the file-backed and object-store-
// backed vectors are built against, addressed by raw chunk-key bytes
// rather than a typed handle, since a column vector has no notion of
// file types.
package backend

import (
	"context"
	"hash"
	"io"
)

// Backend stores and retrieves the byte payload addressed by a chunk key
// or, for object stores, by a whole vector's name: object stores hold
// whole vectors, never per-chunk.
//
// Operations that return an error are retried by retry.Backend unless
// IsPermanentError reports the error as permanent or the error is wrapped
// in a github.com/cenkalti/backoff/v4.PermanentError.
type Backend interface {
	// Connections is the maximum number of concurrent operations this
	// backend allows; used to size the semaphore guarding it.
	Connections() uint

	// Hasher returns a hash function for computing a content hash of
	// saved data, or nil if the backend does not need one.
	Hasher() hash.Hash

	// Save stores the data yielded by rd under key, replacing any prior
	// value.
	Save(ctx context.Context, key []byte, rd RewindReader) error

	// Load invokes fn with a reader over the bytes stored under key. If
	// length > 0, only the range [offset, offset+length) is read. fn may
	// be called more than once across retries and must be idempotent.
	Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error

	// Stat returns size information for key.
	Stat(ctx context.Context, key []byte) (FileInfo, error)

	// Remove deletes the value stored under key.
	Remove(ctx context.Context, key []byte) error

	// IsNotExist reports whether err was caused by a missing key.
	IsNotExist(err error) bool

	// IsPermanentError reports whether retrying is pointless: the key is
	// missing, the requested range doesn't exist, or access was denied.
	IsPermanentError(err error) bool

	// Close releases any resources held by the backend.
	Close() error
}

// FileInfo describes the stored value for a key.
type FileInfo struct {
	Size int64
	Name string
}

// ApplyEnvironmenter is implemented by backend configs that can fall back
// to environment variables (prefixed with prefix) for values the location
// string didn't supply, e.g. object-store credentials.
type ApplyEnvironmenter interface {
	ApplyEnvironment(prefix string)
}
