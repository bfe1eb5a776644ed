package util

import (
	"context"
	"io"
)

// DefaultLoad implements Backend.Load using a lower-level openReader func:
// open, hand the reader to fn, then close, regardless of fn's outcome.
func DefaultLoad(ctx context.Context, key []byte, length int, offset int64,
	openReader func(ctx context.Context, key []byte, length int, offset int64) (io.ReadCloser, error),
	fn func(rd io.Reader) error) error {

	rd, err := openReader(ctx, key, length, offset)
	if err != nil {
		return err
	}

	if err := fn(rd); err != nil {
		_ = rd.Close() // ignore secondary errors closing the reader
		return err
	}

	return rd.Close()
}
