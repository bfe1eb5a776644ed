package s3_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/s3"
	"github.com/coldeck/mrcore/internal/options"
)

// runS3BackendConformance exercises Save/Stat/Load/Remove against a live
// bucket. Used by both the s3-compatible test below and any future minio
// harness wired against this package.
func runS3BackendConformance(t *testing.T, be *s3.Backend) {
	t.Helper()

	ctx := context.Background()
	key := []byte(fmt.Sprintf("mrcore-test-%d", time.Now().UnixNano()))
	data := []byte("the quick brown fox jumps over the lazy dog")

	if err := be.Save(ctx, key, backend.NewByteReader(data, be.Hasher())); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fi, err := be.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Size != int64(len(data)) {
		t.Fatalf("Stat: wrong size, want %d, got %d", len(data), fi.Size)
	}

	var loaded []byte
	err = be.Load(ctx, key, 0, 0, func(rd io.Reader) error {
		var rerr error
		loaded, rerr = io.ReadAll(rd)
		return rerr
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded, data) {
		t.Fatalf("Load: wrong data, want %q, got %q", data, loaded)
	}

	if err := be.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := be.Stat(ctx, key); err == nil || !be.IsNotExist(err) {
		t.Fatalf("Stat after Remove: expected not-exist error, got %v", err)
	}
}

// TestBackendS3 runs against a real S3-compatible endpoint when the
// environment variables below are set; it's skipped otherwise.
func TestBackendS3(t *testing.T) {
	vars := []string{"MRCORE_TEST_S3_KEY", "MRCORE_TEST_S3_SECRET", "MRCORE_TEST_S3_REPOSITORY"}
	for _, v := range vars {
		if os.Getenv(v) == "" {
			t.Skipf("environment variable %v not set", v)
		}
	}

	cfg, err := s3.ParseConfig(os.Getenv("MRCORE_TEST_S3_REPOSITORY"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.KeyID = os.Getenv("MRCORE_TEST_S3_KEY")
	cfg.Secret = options.NewSecretString(os.Getenv("MRCORE_TEST_S3_SECRET"))
	cfg.Prefix = fmt.Sprintf("test-%d", time.Now().UnixNano())

	be, err := s3.Create(context.Background(), *cfg, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	defer be.Close()

	runS3BackendConformance(t, be)
}
