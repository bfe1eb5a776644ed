package vector

import (
	"context"
	"sync/atomic"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/errors"
	"github.com/coldeck/mrcore/internal/future"
	"github.com/coldeck/mrcore/internal/ids"
	"github.com/coldeck/mrcore/internal/kv"
)

// AppendableVector is a write-once output vector: it accumulates one
// chunk per local map call during a task, then is finalized on completion
// into a read-only vector. nChunks is fixed at construction (one output
// chunk per input chunk, the common case) rather than derived from a
// total length, since that length isn't known until every chunk has been
// published.
type AppendableVector struct {
	id      ids.VectorID
	nChunks int
	chunks  *kv.Store[*chunk]
	sink    backend.Backend // optional durable store; nil means in-process only
	closed  atomic.Bool
	length  atomic.Int64
}

// NewAppendable returns an output vector with nChunks slots, one per chunk
// of the (aligned) input vectors the owning task walks. sink, if non-nil,
// is where Publish durably flushes each chunk.
func NewAppendable(id ids.VectorID, nChunks int, sink backend.Backend) *AppendableVector {
	return &AppendableVector{id: id, nChunks: nChunks, chunks: kv.New[*chunk](), sink: sink}
}

func (v *AppendableVector) ID() ids.VectorID { return v.id }
func (v *AppendableVector) NChunks() int     { return v.nChunks }
func (v *AppendableVector) Length() int      { return int(v.length.Load()) }
func (v *AppendableVector) Writable() bool   { return !v.closed.Load() }
func (v *AppendableVector) Readable() bool   { return v.closed.Load() }

func (v *AppendableVector) Chunk2StartElem(cidx int) int { return chunk2StartElem(cidx) }
func (v *AppendableVector) Elem2ChunkIdx(row int) int    { return elem2ChunkIdx(row, v.nChunks) }
func (v *AppendableVector) ChunkKey(cidx int) ids.Key    { return ids.ChunkKey(v.id, cidx) }

func (v *AppendableVector) ChunkIdx(key ids.Key) (int, error) {
	_, id, cidx, err := ids.Decode(key)
	if err != nil {
		return 0, err
	}
	if id != v.id {
		return 0, errNotMine(v.id, id)
	}
	return cidx, nil
}

func (v *AppendableVector) Elem2BV(_ context.Context, startRow, cidx int) (*ChunkView, error) {
	if cidx >= v.nChunks {
		return nil, nil
	}
	c, ok := v.chunks.Get(v.ChunkKey(cidx))
	if !ok {
		return nil, nil
	}
	return c.view(), nil
}

// Publish stores the chunk produced for cidx and, if a durable sink is
// configured, flushes it in the background, registering the flush as a
// future on futures. The task engine's postLocal waits only on the task's
// own future set, which map hooks have no access to, so it does not wait
// on these flushes; waiting on futures is up to the caller that passed it.
// Publishing the same chunk index twice is a programming error: chunk
// coverage guarantees map runs exactly once per chunk.
func (v *AppendableVector) Publish(ctx context.Context, cidx int, startRow int, data []byte, futures *future.Set) error {
	if !v.Writable() {
		return errors.Errorf("AppendableVector %v: Publish after Close", v.id)
	}

	key := v.ChunkKey(cidx)
	c := &chunk{startRow: startRow, len: len(data), data: data}
	if _, stored := v.chunks.PutIfAbsent(key, c); !stored {
		return errors.Errorf("AppendableVector %v: chunk %d already published", v.id, cidx)
	}

	if v.sink != nil {
		f := future.New()
		futures.Add(f)
		go func() {
			f.Complete(v.sink.Save(ctx, key, backend.NewByteReader(data, nil)))
		}()
	}

	return nil
}

// Close finalizes the vector: every chunk slot must have been published.
// It computes the total length from the last chunk's start row plus
// length, matching FileVector's fat-tail accounting.
func (v *AppendableVector) Close() error {
	if !v.closed.CompareAndSwap(false, true) {
		return nil
	}

	if v.nChunks == 0 {
		return nil
	}

	last, ok := v.chunks.Get(v.ChunkKey(v.nChunks - 1))
	if !ok {
		return errors.Errorf("AppendableVector %v: closed with chunk %d never published", v.id, v.nChunks-1)
	}
	v.length.Store(int64(last.startRow + last.len))

	for c := 0; c < v.nChunks-1; c++ {
		if _, ok := v.chunks.Get(v.ChunkKey(c)); !ok {
			return errors.Errorf("AppendableVector %v: closed with chunk %d never published", v.id, c)
		}
	}

	return nil
}
