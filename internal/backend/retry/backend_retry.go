// Package retry wraps a backend.Backend with bounded exponential backoff:
// every error that the wrapped backend's IsPermanentError does not report
// as permanent is retried with a 256ms initial backoff, doubling after each
// retry, up to a small retry ceiling. End-of-stream and socket-timeout
// failures get the same policy as any other error; there is no separate,
// shorter backoff for them.
package retry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/debug"
)

// Backend retries operations on the wrapped backend with a backoff.
type Backend struct {
	backend.Backend

	// MaxTries bounds the number of retries after the first attempt, so an
	// operation runs at most MaxTries+1 times; the default is 3.
	MaxTries uint64
	// Report, if set, is called with a description and the error on every
	// failed attempt, including ones that will be retried.
	Report func(string, error, time.Duration)

	failedLoads sync.Map
}

// statically ensure that Backend implements backend.Backend.
var _ backend.Backend = &Backend{}

// New wraps be with a backend that retries operations after a backoff.
// report is called with a description and the error on every failed
// attempt.
func New(be backend.Backend, maxTries uint64, report func(string, error, time.Duration)) *Backend {
	if maxTries == 0 {
		maxTries = 3
	}
	return &Backend{Backend: be, MaxTries: maxTries, Report: report}
}

// failedLoadExpiry bounds how long a key stays behind the Load circuit
// breaker after exhausting its retries.
var failedLoadExpiry = time.Hour

func (be *Backend) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 256 * time.Millisecond
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0 // bounded by MaxTries, not elapsed time
	return backoff.WithMaxRetries(eb, be.MaxTries)
}

func (be *Backend) retry(ctx context.Context, msg string, f func() error) error {
	// A cancelled context gets no retries either, so stay consistent and
	// abort immediately.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return backoff.RetryNotify(
		func() error {
			err := f()
			if err != nil && be.Backend.IsPermanentError(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(be.newBackOff(), ctx),
		func(err error, d time.Duration) {
			debug.Log("%s failed, retrying after %v: %v", msg, d, err)
			if be.Report != nil {
				be.Report(msg, err, d)
			}
		},
	)
}

// Save stores the data in the backend under key, retrying on transient
// failure. A failed attempt removes any partial write before retrying.
func (be *Backend) Save(ctx context.Context, key []byte, rd backend.RewindReader) error {
	return be.retry(ctx, fmt.Sprintf("Save(%x)", key), func() error {
		if err := rd.Rewind(); err != nil {
			return err
		}

		err := be.Backend.Save(ctx, key, rd)
		if err == nil {
			return nil
		}

		debug.Log("Save(%x) failed with error, removing partial write: %v", key, err)
		if rerr := be.Backend.Remove(ctx, key); rerr != nil {
			debug.Log("Remove(%x) returned error: %v", key, rerr)
		}

		return err
	})
}

// Load retries the open-and-read cycle transparently: consumer may be
// invoked more than once across attempts and must be idempotent. A key
// that exhausts its retries with a non-permanent error is circuit-broken
// for an hour, so a broad fan-out doesn't hammer a single dead chunk.
func (be *Backend) Load(ctx context.Context, key []byte, length int, offset int64, consumer func(rd io.Reader) error) error {
	k := string(key)

	if v, ok := be.failedLoads.Load(k); ok {
		if time.Since(v.(time.Time)) > failedLoadExpiry {
			be.failedLoads.Delete(k)
		} else {
			return fmt.Errorf("circuit breaker open for key %x", key)
		}
	}

	err := be.retry(ctx, fmt.Sprintf("Load(%x, %d, %d)", key, length, offset), func() error {
		return be.Backend.Load(ctx, key, length, offset, consumer)
	})

	if err != nil && !be.Backend.IsPermanentError(err) {
		be.failedLoads.LoadOrStore(k, time.Now())
	}

	return err
}

// Stat returns information about key, not retrying a not-found result.
func (be *Backend) Stat(ctx context.Context, key []byte) (fi backend.FileInfo, err error) {
	err = be.retry(ctx, fmt.Sprintf("Stat(%x)", key), func() error {
		var innerErr error
		fi, innerErr = be.Backend.Stat(ctx, key)
		if be.Backend.IsNotExist(innerErr) {
			return backoff.Permanent(innerErr)
		}
		return innerErr
	})
	return fi, err
}

// Remove deletes key, retrying transient failures.
func (be *Backend) Remove(ctx context.Context, key []byte) error {
	return be.retry(ctx, fmt.Sprintf("Remove(%x)", key), func() error {
		return be.Backend.Remove(ctx, key)
	})
}

// Unwrap returns the wrapped backend.
func (be *Backend) Unwrap() backend.Backend {
	return be.Backend
}
