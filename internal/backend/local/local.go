// Package local implements the on-disk chunk backend: each key is stored
// as one file in a flat directory, with no per-file-type subdirectory
// layout, since a column vector has no use for one.
package local

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cenkalti/backoff/v4"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/util"
	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/errors"
)

// Local is a backend backed by a local directory.
type Local struct {
	Config
}

// ensure statically that *Local implements backend.Backend.
var _ backend.Backend = &Local{}

var errTooShort = fmt.Errorf("file is too short")

const dirMode = 0700
const fileMode = 0600

// Open opens the local backend as specified by cfg.
func Open(_ context.Context, cfg Config) (*Local, error) {
	debug.Log("open local backend at %v", cfg.Path)

	if err := os.MkdirAll(cfg.Path, dirMode); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Local{Config: cfg}, nil
}

// Create is an alias for Open: a local directory needs no separate
// creation step beyond existing (or being created).
func Create(ctx context.Context, cfg Config) (*Local, error) {
	return Open(ctx, cfg)
}

func (b *Local) filename(key []byte) string {
	return filepath.Join(b.Path, hex.EncodeToString(key))
}

func (b *Local) Connections() uint {
	return b.Config.Connections
}

// Hasher returns nil: the local filesystem already gives us integrity via
// fsync + atomic rename, so no additional content hash is computed.
func (b *Local) Hasher() hash.Hash {
	return nil
}

// IsNotExist returns true if the error is caused by a non existing file.
func (b *Local) IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func (b *Local) IsPermanentError(err error) bool {
	return b.IsNotExist(err) || errors.Is(err, errTooShort) || errors.Is(err, os.ErrPermission)
}

// Save stores the data yielded by rd under key, using a write-to-temp,
// fsync, rename sequence so a crash mid-write never leaves a corrupt chunk
// visible under its final name.
func (b *Local) Save(_ context.Context, key []byte, rd backend.RewindReader) (err error) {
	finalname := b.filename(key)
	dir := filepath.Dir(finalname)

	defer func() {
		if errors.Is(err, syscall.ENOSPC) || os.IsPermission(err) {
			err = backoff.Permanent(err)
		}
	}()

	f, err := os.CreateTemp(dir, filepath.Base(finalname)+"-tmp-")
	if b.IsNotExist(err) {
		debug.Log("error %v: creating dir", err)
		if mkdirErr := os.MkdirAll(dir, dirMode); mkdirErr != nil {
			debug.Log("error creating dir %v: %v", dir, mkdirErr)
		} else {
			f, err = os.CreateTemp(dir, filepath.Base(finalname)+"-tmp-")
		}
	}
	if err != nil {
		return errors.WithStack(err)
	}

	defer func(f *os.File) {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}(f)

	wbytes, err := io.Copy(f, rd)
	if err != nil {
		return errors.WithStack(err)
	}
	if wbytes != rd.Length() {
		return errors.Errorf("wrote %d bytes instead of the expected %d bytes", wbytes, rd.Length())
	}

	if err = f.Sync(); err != nil && !errors.Is(err, syscall.ENOTSUP) {
		return errors.WithStack(err)
	}

	if err = f.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err = os.Rename(f.Name(), finalname); err != nil {
		return errors.WithStack(err)
	}

	if d, direrr := os.Open(dir); direrr == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}

// Load runs fn with a reader over the bytes stored under key.
func (b *Local) Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
	return util.DefaultLoad(ctx, key, length, offset, b.openReader, fn)
}

func (b *Local) openReader(_ context.Context, key []byte, length int, offset int64) (io.ReadCloser, error) {
	f, err := os.Open(b.filename(key))
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if fi.Size() < offset+int64(length) {
		_ = f.Close()
		return nil, errTooShort
	}

	if offset > 0 {
		if _, err = f.Seek(offset, 0); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	if length > 0 {
		return util.LimitReadCloser(f, int64(length)), nil
	}

	return f, nil
}

// Stat returns information about the value stored under key.
func (b *Local) Stat(_ context.Context, key []byte) (backend.FileInfo, error) {
	fi, err := os.Stat(b.filename(key))
	if err != nil {
		return backend.FileInfo{}, errors.WithStack(err)
	}

	return backend.FileInfo{Size: fi.Size(), Name: hex.EncodeToString(key)}, nil
}

// Remove deletes the value stored under key.
func (b *Local) Remove(_ context.Context, key []byte) error {
	fn := b.filename(key)
	_ = os.Chmod(fn, fileMode|0200)
	return os.Remove(fn)
}

// Close does nothing: all files are opened and closed within their own
// method calls.
func (b *Local) Close() error {
	return nil
}
