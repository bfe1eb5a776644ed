// Package ids implements the chunk-key layout: a bit-exact, wire-visible
// byte encoding of {kind, vector id, chunk index}, plus the deterministic
// chunk-to-home-node function. Keyed by vector identity and chunk index
// instead of a content hash, since a chunk's bytes aren't known until it
// is first materialized.
package ids

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/coldeck/mrcore/internal/errors"
)

// Kind is the one-byte tag at offset 0 of every chunk key.
type Kind byte

const (
	// KindDVec addresses a chunk of a vector created by this module.
	KindDVec Kind = 1
	// KindArrayletChunk is accepted on decode for legacy-key
	// compatibility with an older chunk-key lineage; this module never
	// encodes it.
	KindArrayletChunk Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindDVec:
		return "DVEC"
	case KindArrayletChunk:
		return "ARRAYLET_CHUNK"
	default:
		return "UNKNOWN"
	}
}

// keyLen is len(kind) + len(uuid) + len(chunk index).
const keyLen = 1 + 16 + 4

// VectorID uniquely identifies a vector cluster-wide.
type VectorID uuid.UUID

// NewVectorID returns a fresh random vector identifier.
func NewVectorID() VectorID {
	return VectorID(uuid.New())
}

func (v VectorID) String() string {
	return uuid.UUID(v).String()
}

// Key is an opaque chunk-key byte identifier.
type Key []byte

// ChunkKey encodes the chunk key for chunk cidx of vector id: kind byte,
// 16-byte vector id, big-endian uint32 chunk index. Big-endian is this
// module's cluster-wide byte order choice.
func ChunkKey(id VectorID, cidx int) Key {
	buf := make([]byte, keyLen)
	buf[0] = byte(KindDVec)
	copy(buf[1:17], id[:])
	binary.BigEndian.PutUint32(buf[17:21], uint32(cidx))
	return buf
}

// Decode splits a chunk key back into its kind, vector id and chunk index.
func Decode(k Key) (kind Kind, id VectorID, cidx int, err error) {
	if len(k) != keyLen {
		return 0, VectorID{}, 0, errors.Fatalf("malformed chunk key: want %d bytes, got %d", keyLen, len(k))
	}

	kind = Kind(k[0])
	if kind != KindDVec && kind != KindArrayletChunk {
		return 0, VectorID{}, 0, errors.Fatalf("malformed chunk key: unknown kind tag %v", k[0])
	}

	copy(id[:], k[1:17])
	cidx = int(binary.BigEndian.Uint32(k[17:21]))
	return kind, id, cidx, nil
}

// ChunkIdx returns the chunk index encoded in k, panicking-free: callers
// that already know k is well-formed (e.g. chunks they themselves produced)
// can use this instead of the full Decode.
func ChunkIdx(k Key) (int, error) {
	_, _, cidx, err := Decode(k)
	return cidx, err
}

// Hex is a convenience accessor used by debug logging, for printing a key
// in contexts where %x isn't a natural fit.
func (k Key) Hex() string {
	return hex.EncodeToString(k)
}
