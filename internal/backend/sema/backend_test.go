package sema_test

import (
	"context"
	"hash"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/sema"
)

// mockBackend is a minimal backend.Backend whose operations are hooked by
// the individual tests below.
type mockBackend struct {
	ConnectionsFn func() uint
	SaveFn        func(ctx context.Context, key []byte, rd backend.RewindReader) error
	OpenFn        func(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error
	StatFn        func(ctx context.Context, key []byte) (backend.FileInfo, error)
	RemoveFn      func(ctx context.Context, key []byte) error
}

func (m *mockBackend) Connections() uint { return m.ConnectionsFn() }
func (m *mockBackend) Hasher() hash.Hash { return nil }
func (m *mockBackend) Save(ctx context.Context, key []byte, rd backend.RewindReader) error {
	return m.SaveFn(ctx, key, rd)
}
func (m *mockBackend) Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
	return m.OpenFn(ctx, key, length, offset, fn)
}
func (m *mockBackend) Stat(ctx context.Context, key []byte) (backend.FileInfo, error) {
	return m.StatFn(ctx, key)
}
func (m *mockBackend) Remove(ctx context.Context, key []byte) error {
	return m.RemoveFn(ctx, key)
}
func (m *mockBackend) IsNotExist(err error) bool       { return false }
func (m *mockBackend) IsPermanentError(err error) bool { return false }
func (m *mockBackend) Close() error                    { return nil }

func countingBlocker() (func(), func(int) int) {
	ctr := int64(0)
	blocker := make(chan struct{})

	wait := func() {
		atomic.AddInt64(&ctr, 1)
		<-blocker
	}

	unblock := func(expected int) int {
		var blocked int64
		for i := 0; i < 100 && blocked < int64(expected); i++ {
			time.Sleep(100 * time.Microsecond)
			blocked = atomic.LoadInt64(&ctr)
		}
		close(blocker)
		return int(blocked)
	}

	return wait, unblock
}

func concurrencyTester(t *testing.T, setup func(m *mockBackend), handler func(be backend.Backend) func() error, unblock func(int) int) {
	expectBlocked := 2
	workerCount := expectBlocked + 1

	m := &mockBackend{}
	setup(m)
	m.ConnectionsFn = func() uint { return uint(expectBlocked) }
	be := sema.NewBackend(m)

	var wg errgroup.Group
	for i := 0; i < workerCount; i++ {
		wg.Go(handler(be))
	}

	blocked := unblock(expectBlocked)
	if blocked != expectBlocked {
		t.Fatalf("unexpected number of goroutines blocked: %v", blocked)
	}
	if err := wg.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestConcurrencyLimitSave(t *testing.T) {
	wait, unblock := countingBlocker()
	concurrencyTester(t, func(m *mockBackend) {
		m.SaveFn = func(ctx context.Context, key []byte, rd backend.RewindReader) error {
			wait()
			return nil
		}
	}, func(be backend.Backend) func() error {
		return func() error {
			return be.Save(context.Background(), []byte("foobar"), nil)
		}
	}, unblock)
}

func TestConcurrencyLimitLoad(t *testing.T) {
	wait, unblock := countingBlocker()
	concurrencyTester(t, func(m *mockBackend) {
		m.OpenFn = func(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
			wait()
			return fn(io.LimitReader(nil, 0))
		}
	}, func(be backend.Backend) func() error {
		return func() error {
			return be.Load(context.Background(), []byte("foobar"), 10, 0, func(rd io.Reader) error { return nil })
		}
	}, unblock)
}

func TestConcurrencyLimitStat(t *testing.T) {
	wait, unblock := countingBlocker()
	concurrencyTester(t, func(m *mockBackend) {
		m.StatFn = func(ctx context.Context, key []byte) (backend.FileInfo, error) {
			wait()
			return backend.FileInfo{}, nil
		}
	}, func(be backend.Backend) func() error {
		return func() error {
			_, err := be.Stat(context.Background(), []byte("foobar"))
			return err
		}
	}, unblock)
}

func TestConcurrencyLimitRemove(t *testing.T) {
	wait, unblock := countingBlocker()
	concurrencyTester(t, func(m *mockBackend) {
		m.RemoveFn = func(ctx context.Context, key []byte) error {
			wait()
			return nil
		}
	}, func(be backend.Backend) func() error {
		return func() error {
			return be.Remove(context.Background(), []byte("foobar"))
		}
	}, unblock)
}

func TestUnwrap(t *testing.T) {
	m := &mockBackend{}
	be := sema.NewBackend(m)

	unwrapper, ok := be.(interface{ Unwrap() backend.Backend })
	if !ok {
		t.Fatal("sema.Backend does not implement Unwrap()")
	}
	if unwrapper.Unwrap() != backend.Backend(m) {
		t.Fatal("Unwrap() returned wrong backend")
	}
}
