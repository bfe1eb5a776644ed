// Package hashing provides io.Reader and io.Writer implementations that
// hash all data while it passes through, so a backend can compute a
// content hash for a chunk payload without buffering it twice.
package hashing

import (
	"hash"
	"io"
)

// Reader hashes all data read from the underlying reader.
type Reader struct {
	io.Reader
	h hash.Hash
}

// NewReader returns a new Reader that uses h to hash all data read from rd.
// If rd implements io.WriterTo, the fast path is preserved: copying from
// the returned Reader still avoids Read-sized buffering.
func NewReader(rd io.Reader, h hash.Hash) *Reader {
	return &Reader{
		Reader: newTeeReader(rd, h),
		h:      h,
	}
}

// Sum returns the hash of the data read so far, appended to d.
func (h *Reader) Sum(d []byte) []byte {
	return h.h.Sum(d)
}

// WriteTo forwards to the wrapped reader's WriteTo when available, so
// hashing a reader that supports it doesn't force small reads.
func (h *Reader) WriteTo(w io.Writer) (int64, error) {
	if wt, ok := h.Reader.(io.WriterTo); ok {
		return wt.WriteTo(w)
	}
	return io.Copy(w, h.Reader)
}

// teeReader behaves like io.TeeReader: every byte read from r is also
// written to w.
type teeReader struct {
	r io.Reader
	w io.Writer
}

func newTeeReader(r io.Reader, w io.Writer) io.Reader {
	t := &teeReader{r: r, w: w}
	if _, ok := r.(io.WriterTo); ok {
		return &teeReaderWriterTo{t}
	}
	return t
}

func (t *teeReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if _, werr := t.w.Write(p[:n]); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// teeReaderWriterTo adds a WriteTo method that is only valid when the
// wrapped reader supports it.
type teeReaderWriterTo struct {
	*teeReader
}

func (t *teeReaderWriterTo) WriteTo(w io.Writer) (int64, error) {
	mw := io.MultiWriter(w, t.w)
	return t.r.(io.WriterTo).WriteTo(mw)
}

// Writer hashes all data written to the underlying writer.
type Writer struct {
	io.Writer
	h hash.Hash
}

// NewWriter returns a new Writer that uses h to hash all data written to wr.
func NewWriter(wr io.Writer, h hash.Hash) *Writer {
	return &Writer{
		Writer: io.MultiWriter(wr, h),
		h:      h,
	}
}

// Sum returns the hash of the data written so far, appended to d.
func (h *Writer) Sum(d []byte) []byte {
	return h.h.Sum(d)
}
