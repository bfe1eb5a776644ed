// Package mem implements an in-memory backend.Backend, used by tests of
// every layer above it (file-backed vectors, the distributed fan-out
// simulation) instead of standing up a real object store. Grounded on the
// teacher's internal/backend/mem.MemoryBackend, adapted to this module's
// raw-chunk-key addressing instead of typed Handles.
package mem

import (
	"bytes"
	"context"
	"hash"
	"io"
	"sync"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/util"
	"github.com/coldeck/mrcore/internal/errors"
)

var errNotFound = errors.New("not found")
var errTooSmall = errors.New("access beyond end of file")

// Backend is a mock backend that stores everything in a map. Safe for
// concurrent use; intended for tests only.
type Backend struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ backend.Backend = &Backend{}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

func (b *Backend) Connections() uint { return 8 }

// Hasher returns nil: the in-memory map already gives exact byte equality,
// so no additional content hash is computed.
func (b *Backend) Hasher() hash.Hash { return nil }

func (b *Backend) Save(_ context.Context, key []byte, rd backend.RewindReader) error {
	buf, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	if int64(len(buf)) != rd.Length() {
		return errors.Errorf("wrote %d bytes instead of expected %d", len(buf), rd.Length())
	}

	b.mu.Lock()
	b.data[string(key)] = buf
	b.mu.Unlock()
	return nil
}

func (b *Backend) openReader(_ context.Context, key []byte, length int, offset int64) (io.ReadCloser, error) {
	b.mu.Lock()
	buf, ok := b.data[string(key)]
	b.mu.Unlock()
	if !ok {
		return nil, errNotFound
	}

	if offset+int64(length) > int64(len(buf)) {
		return nil, errTooSmall
	}

	buf = buf[offset:]
	if length > 0 {
		buf = buf[:length]
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (b *Backend) Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
	return util.DefaultLoad(ctx, key, length, offset, b.openReader, fn)
}

func (b *Backend) Stat(_ context.Context, key []byte) (backend.FileInfo, error) {
	b.mu.Lock()
	buf, ok := b.data[string(key)]
	b.mu.Unlock()
	if !ok {
		return backend.FileInfo{}, errNotFound
	}
	return backend.FileInfo{Size: int64(len(buf))}, nil
}

func (b *Backend) Remove(_ context.Context, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[string(key)]; !ok {
		return errNotFound
	}
	delete(b.data, string(key))
	return nil
}

func (b *Backend) IsNotExist(err error) bool {
	return errors.Is(err, errNotFound)
}

func (b *Backend) IsPermanentError(err error) bool {
	return b.IsNotExist(err) || errors.Is(err, errTooSmall)
}

func (b *Backend) Close() error { return nil }
