// Package codec implements the chunk payload encodings used by ChunkView:
// a fixed-width int32 column layout, plus an optional at-rest compression
// wrapper for the bytes a chunk is persisted under. Grounded on the
// teacher's use of klauspost/compress for pack-file compression
// (DOMAIN STACK, "Optional at-rest chunk compression").
package codec

import (
	"encoding/binary"

	"github.com/klauspost/compress/s2"

	"github.com/coldeck/mrcore/internal/errors"
)

// EncodeInt32 lays out vals as little-endian int32 rows, the column
// encoding used by the int32 vectors in the spec's end-to-end scenarios
// (S1 sum, S2 dot product, S4 doubling).
func EncodeInt32(vals []int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return buf
}

// DecodeInt32 is the inverse of EncodeInt32.
func DecodeInt32(buf []byte) ([]int32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.Errorf("codec: int32 payload length %d is not a multiple of 4", len(buf))
	}
	vals := make([]int32, len(buf)/4)
	for i := range vals {
		vals[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vals, nil
}

// Compress wraps buf in S2's block format for at-rest storage. Chunk
// compression is optional: callers that never configure it keep passing
// raw payloads straight through to the backing store.
func Compress(buf []byte) []byte {
	return s2.Encode(nil, buf)
}

// Decompress is the inverse of Compress.
func Decompress(buf []byte) ([]byte, error) {
	out, err := s2.Decode(nil, buf)
	if err != nil {
		return nil, errors.Wrap(err, "codec: s2 decompress")
	}
	return out, nil
}
