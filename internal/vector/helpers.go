package vector

import (
	"github.com/coldeck/mrcore/internal/codec"
	"github.com/coldeck/mrcore/internal/errors"
	"github.com/coldeck/mrcore/internal/ids"
)

func decodeInt32(payload []byte) ([]int32, error) {
	return codec.DecodeInt32(payload)
}

func errNotMine(want, got ids.VectorID) error {
	return errors.Fatalf("chunk key belongs to vector %v, not %v", got, want)
}
