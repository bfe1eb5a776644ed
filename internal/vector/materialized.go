package vector

import (
	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/ids"
)

// NewMaterialized returns a write-once vector built inside a single map
// call and published on task exit. It is an AppendableVector with a
// single chunk slot -- the write-once contract and the finalize-on-Close
// behavior are identical, just specialized to nChunks == 1.
func NewMaterialized(id ids.VectorID, sink backend.Backend) *AppendableVector {
	return NewAppendable(id, 1, sink)
}
