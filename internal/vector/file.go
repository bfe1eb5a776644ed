package vector

import (
	"bytes"
	"context"
	"io"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/errors"
	"github.com/coldeck/mrcore/internal/ids"
)

// chunkCacheSize bounds how many decoded chunks a single FileVector keeps
// resident. Object-store-backed vectors can have far more chunks than fit
// comfortably in memory at once; an LRU bound keeps repeated scans of a
// large vector from growing without limit.
const chunkCacheSize = 4096

// hexSentinelSuffix marks a vector name as carrying a header: vectors whose
// logical name ends with this suffix carry a header of length H, and all
// chunk offsets are shifted by H.
const hexSentinelSuffix = ".hex"

// chunk is the materialized backing value published under a chunk key: in
// a FileVector's LRU cache on first touch, where the first value added
// wins a race, and in an AppendableVector's kv.Store on Publish.
type chunk struct {
	startRow int
	len      int
	data     []byte
}

// FileVector is a read-only, file-backed vector: length is fixed at
// creation, chunks are generated lazily on first access and published into
// the node-local store with compare-and-swap, and the vector itself is
// never writable. Its byte source is any internal/backend.Backend -- local
// disk or an object-store backend wrapped in internal/backend/retry.
type FileVector struct {
	Layout

	source backend.Backend
	name   []byte // storage key this vector's bytes live under
	header int64  // offset shift for names ending in hexSentinelSuffix

	cache *lru.Cache[string, *chunk]
}

// NewFileVector opens a read-only vector over length bytes of source,
// stored under name. length is the file's total byte length, not
// including any header; the header (if name carries the sentinel suffix)
// is computed separately and never counted as vector data.
func NewFileVector(id ids.VectorID, name string, length int, source backend.Backend, header int64) *FileVector {
	if !strings.HasSuffix(name, hexSentinelSuffix) {
		header = 0
	}
	cache, err := lru.New[string, *chunk](chunkCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which chunkCacheSize
		// never is.
		panic(err)
	}
	return &FileVector{
		Layout: NewLayout(id, length),
		source: source,
		name:   []byte(name),
		header: header,
		cache:  cache,
	}
}

func (v *FileVector) Writable() bool { return false }
func (v *FileVector) Readable() bool { return true } // length is fixed at creation

// Elem2BV materializes chunk cidx on first access -- reading the
// [start, start+len) byte range from the backing store -- and publishes it
// under ChunkKey(cidx) with compare-and-swap; a losing racer discards its
// own read and adopts whichever value won.
func (v *FileVector) Elem2BV(ctx context.Context, startRow, cidx int) (*ChunkView, error) {
	if cidx >= v.NChunks() {
		// A would-be trailing chunk that the fat tail already swallowed:
		// return (nil, nil) rather than erroring, and log a diagnostic
		// since it is unclear whether real callers ever hit this.
		debug.Log("Elem2BV(%d): chunk index past nChunks=%d, fat tail already swallowed it", cidx, v.NChunks())
		return nil, nil
	}

	cacheKey := v.ChunkKey(cidx).Hex()
	if c, ok := v.cache.Get(cacheKey); ok {
		return c.view(), nil
	}

	clen := v.ChunkLen(cidx)
	data, err := v.readRange(ctx, cidx, clen)
	if err != nil {
		return nil, errors.Wrapf(err, "reading chunk %d of vector %v", cidx, v.ID())
	}

	// ContainsOrAdd performs the compare-and-swap publication:
	// alreadyPresent is true if another goroutine's read already won the
	// race, in which case our copy is discarded in favor of the resident
	// one rather than overwriting it.
	mine := &chunk{startRow: startRow, len: clen, data: data}
	alreadyPresent, _ := v.cache.ContainsOrAdd(cacheKey, mine)
	if alreadyPresent {
		if existing, ok := v.cache.Peek(cacheKey); ok {
			return existing.view(), nil
		}
	}
	return mine.view(), nil
}

func (c *chunk) view() *ChunkView {
	return &ChunkView{StartRow: c.startRow, Len: c.len, Payload: c.data}
}

func (v *FileVector) readRange(ctx context.Context, cidx, length int) ([]byte, error) {
	offset := int64(v.Chunk2StartElem(cidx)) + v.header

	var buf bytes.Buffer
	err := v.source.Load(ctx, v.name, length, offset, func(rd io.Reader) error {
		buf.Reset()
		_, err := io.Copy(&buf, rd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
