// Package vector implements the column-vector data model: chunk
// addressing, the file/object-store-backed vector, and the
// appendable/materialized output vectors a map call populates.
package vector

import (
	"context"

	"github.com/coldeck/mrcore/internal/ids"
)

// LogChk and ChunkSZ are the module-wide chunk size constants: ChunkSZ =
// 1 << LogChk. Every vector in a cluster shares the same constant so
// chunk boundaries -- and therefore alignment -- are comparable across
// vectors without negotiation.
const (
	LogChk  = 16
	ChunkSZ = 1 << LogChk
)

// Vector is an immutable logical column, partitioned into chunks,
// addressable by row or by chunk index.
type Vector interface {
	ID() ids.VectorID
	Length() int
	NChunks() int
	Writable() bool
	Readable() bool

	Chunk2StartElem(cidx int) int
	Elem2ChunkIdx(row int) int
	ChunkKey(cidx int) ids.Key
	ChunkIdx(key ids.Key) (int, error)

	// Elem2BV decodes the chunk at cidx (whose first row is startRow) into
	// a ChunkView. Returns (nil, nil) for a would-be trailing chunk already
	// swallowed by the fat tail.
	Elem2BV(ctx context.Context, startRow, cidx int) (*ChunkView, error)
}

// ChunkView is the decoded window over one chunk: the row range it covers
// plus its codec-specific payload (see internal/codec).
type ChunkView struct {
	StartRow int
	Len      int
	Payload  []byte
}

// Int32s decodes the view's payload as a column of little-endian int32s.
func (v *ChunkView) Int32s() ([]int32, error) {
	return decodeInt32(v.Payload)
}

// Layout implements the row/chunk arithmetic and fat-tail sizing rule
// shared by every vector kind. Embed it to get
// Length/NChunks/Chunk2StartElem/Elem2ChunkIdx/ChunkKey/ChunkIdx for free.
type Layout struct {
	id     ids.VectorID
	length int
}

// NewLayout returns the chunk layout for a vector of the given logical
// length (rows for in-memory vectors, bytes for file-backed ones -- the
// arithmetic is identical either way).
func NewLayout(id ids.VectorID, length int) Layout {
	return Layout{id: id, length: length}
}

func (l Layout) ID() ids.VectorID { return l.id }
func (l Layout) Length() int      { return l.length }

// NChunks implements the fat-tail rule nChunks = max(1, L >> LogChk),
// applied generically to any vector's logical length.
func (l Layout) NChunks() int {
	n := l.length >> LogChk
	if n < 1 {
		n = 1
	}
	return n
}

// Chunk2StartElem implements chunk2StartElem(c) = c << LogChk.
func (l Layout) Chunk2StartElem(cidx int) int {
	return chunk2StartElem(cidx)
}

// Elem2ChunkIdx implements elem2ChunkIdx(r) = min(r >> LogChk, nChunks-1);
// the clamp realizes the fat-tail rule by folding any row past the last
// regular chunk boundary into the final, oversized chunk.
func (l Layout) Elem2ChunkIdx(row int) int {
	return elem2ChunkIdx(row, l.NChunks())
}

// chunk2StartElem and elem2ChunkIdx are free functions so AppendableVector
// (whose total length isn't known until Close) can share the exact same
// addressing arithmetic as Layout without first knowing its final length.
func chunk2StartElem(cidx int) int {
	return cidx << LogChk
}

func elem2ChunkIdx(row, nChunks int) int {
	c := row >> LogChk
	if max := nChunks - 1; c > max {
		c = max
	}
	return c
}

func (l Layout) ChunkKey(cidx int) ids.Key {
	return ids.ChunkKey(l.id, cidx)
}

func (l Layout) ChunkIdx(key ids.Key) (int, error) {
	_, id, cidx, err := ids.Decode(key)
	if err != nil {
		return 0, err
	}
	if id != l.id {
		return 0, errNotMine(l.id, id)
	}
	return cidx, nil
}

// ChunkLen returns the row (or byte) count of chunk cidx, absorbing the
// fat tail into the final chunk: it may be up to 2*ChunkSZ-1 rows.
func (l Layout) ChunkLen(cidx int) int {
	return chunkLenOf(l.length, l.NChunks(), cidx)
}

func chunkLenOf(length, nChunks, cidx int) int {
	start := chunk2StartElem(cidx)
	if cidx == nChunks-1 {
		return length - start
	}
	return ChunkSZ
}
