package backend

import (
	"bytes"
	"hash"
	"io"

	"github.com/coldeck/mrcore/internal/errors"
)

// RewindReader allows resetting the reader to the beginning of the data so
// retry.Backend can replay a Save after a transient failure.
type RewindReader interface {
	io.Reader

	// Rewind resets the reader so the same data can be read again.
	Rewind() error

	// Length returns the number of bytes readable after Rewind.
	Length() int64

	// Hash returns a content hash of the data, or nil if none was computed.
	Hash() []byte
}

// ByteReader implements RewindReader over an in-memory buffer.
type ByteReader struct {
	*bytes.Reader
	Len  int64
	hash []byte
}

func (b *ByteReader) Rewind() error {
	_, err := b.Reader.Seek(0, io.SeekStart)
	return err
}

func (b *ByteReader) Length() int64 {
	return b.Len
}

func (b *ByteReader) Hash() []byte {
	return b.hash
}

var _ RewindReader = &ByteReader{}

// NewByteReader prepares a ByteReader over buf, hashing it with hasher if
// one is given.
func NewByteReader(buf []byte, hasher hash.Hash) *ByteReader {
	var sum []byte
	if hasher != nil {
		if _, err := hasher.Write(buf); err != nil {
			panic(err)
		}
		sum = hasher.Sum(nil)
	}
	return &ByteReader{
		Reader: bytes.NewReader(buf),
		Len:    int64(len(buf)),
		hash:   sum,
	}
}

// FileReader implements RewindReader over an open file.
type FileReader struct {
	io.ReadSeeker
	Len  int64
	hash []byte
}

func (f *FileReader) Rewind() error {
	_, err := f.ReadSeeker.Seek(0, io.SeekStart)
	return errors.Wrap(err, "Seek")
}

func (f *FileReader) Length() int64 {
	return f.Len
}

func (f *FileReader) Hash() []byte {
	return f.hash
}

var _ RewindReader = &FileReader{}

// NewFileReader wraps f, measuring its length from the current end of file.
func NewFileReader(f io.ReadSeeker, hash []byte) (*FileReader, error) {
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "Seek")
	}

	fr := &FileReader{ReadSeeker: f, Len: pos, hash: hash}
	if err := fr.Rewind(); err != nil {
		return nil, err
	}
	return fr, nil
}
