package local_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/local"
)

func newTestBackend(t *testing.T) *local.Local {
	t.Helper()
	be, err := local.Open(context.Background(), local.Config{Path: t.TempDir(), Connections: 2})
	if err != nil {
		t.Fatal(err)
	}
	return be
}

func TestSaveLoadRemove(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()
	key := []byte{0x01, 0x02, 0x03}
	data := bytes.Repeat([]byte("chunk-payload"), 100)

	if err := be.Save(ctx, key, backend.NewByteReader(data, nil)); err != nil {
		t.Fatal(err)
	}

	var got []byte
	err := be.Load(ctx, key, 0, 0, func(rd io.Reader) error {
		b, rerr := io.ReadAll(rd)
		got = b
		return rerr
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("roundtrip mismatch: got %d bytes, want %d", len(got), len(data))
	}

	fi, err := be.Stat(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size != int64(len(data)) {
		t.Fatalf("wrong size, want %d, got %d", len(data), fi.Size)
	}

	if err := be.Remove(ctx, key); err != nil {
		t.Fatal(err)
	}

	_, err = be.Stat(ctx, key)
	if !be.IsNotExist(err) {
		t.Fatalf("expected not-exist error after Remove, got %v", err)
	}
}

func TestLoadRange(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()
	key := []byte{0xaa}
	data := []byte("0123456789")

	if err := be.Save(ctx, key, backend.NewByteReader(data, nil)); err != nil {
		t.Fatal(err)
	}

	var got []byte
	err := be.Load(ctx, key, 4, 3, func(rd io.Reader) error {
		b, rerr := io.ReadAll(rd)
		got = b
		return rerr
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "3456" {
		t.Fatalf("wrong range read, want %q, got %q", "3456", string(got))
	}
}

func TestStatNotExist(t *testing.T) {
	be := newTestBackend(t)
	_, err := be.Stat(context.Background(), []byte{0xff})
	if !be.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
