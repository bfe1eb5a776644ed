package azure_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/azure"
	"github.com/coldeck/mrcore/internal/options"
)

func backendByteReader(data []byte, hasher hash.Hash) backend.RewindReader {
	return backend.NewByteReader(data, hasher)
}

func crandRead(buf []byte) (int, error) {
	return rand.Read(buf)
}

// TestBackendAzure runs against a real Azure Blob Storage container when
// the environment variables below are set; it's skipped otherwise.
func TestBackendAzure(t *testing.T) {
	vars := []string{"MRCORE_TEST_AZURE_ACCOUNT_NAME", "MRCORE_TEST_AZURE_ACCOUNT_KEY", "MRCORE_TEST_AZURE_REPOSITORY"}
	for _, v := range vars {
		if os.Getenv(v) == "" {
			t.Skipf("environment variable %v not set", v)
		}
	}

	cfg, err := azure.ParseConfig(os.Getenv("MRCORE_TEST_AZURE_REPOSITORY"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.AccountName = os.Getenv("MRCORE_TEST_AZURE_ACCOUNT_NAME")
	cfg.AccountKey = options.NewSecretString(os.Getenv("MRCORE_TEST_AZURE_ACCOUNT_KEY"))
	cfg.Prefix = fmt.Sprintf("test-%d", time.Now().UnixNano())

	ctx := context.Background()
	be, err := azure.Create(ctx, *cfg, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	key := []byte(fmt.Sprintf("mrcore-test-%d", time.Now().UnixNano()))
	data := []byte("the quick brown fox jumps over the lazy dog")

	if err := be.Save(ctx, key, backendByteReader(data, be.Hasher())); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := be.Remove(ctx, key); err != nil {
			t.Fatal(err)
		}
	}()

	var loaded []byte
	err = be.Load(ctx, key, 0, 0, func(rd io.Reader) error {
		var rerr error
		loaded, rerr = io.ReadAll(rd)
		return rerr
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded, data) {
		t.Fatalf("wrong data, want %q, got %q", data, loaded)
	}
}

// TestUploadLargeFile exercises the multi-block staged upload path; skipped
// unless explicitly requested since it moves hundreds of megabytes.
func TestUploadLargeFile(t *testing.T) {
	if os.Getenv("MRCORE_AZURE_TEST_LARGE_UPLOAD") == "" {
		t.Skip("set MRCORE_AZURE_TEST_LARGE_UPLOAD=1 to test large uploads")
	}
	vars := []string{"MRCORE_TEST_AZURE_ACCOUNT_NAME", "MRCORE_TEST_AZURE_ACCOUNT_KEY", "MRCORE_TEST_AZURE_REPOSITORY"}
	for _, v := range vars {
		if os.Getenv(v) == "" {
			t.Skipf("environment variable %v not set", v)
		}
	}

	cfg, err := azure.ParseConfig(os.Getenv("MRCORE_TEST_AZURE_REPOSITORY"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.AccountName = os.Getenv("MRCORE_TEST_AZURE_ACCOUNT_NAME")
	cfg.AccountKey = options.NewSecretString(os.Getenv("MRCORE_TEST_AZURE_ACCOUNT_KEY"))
	cfg.Prefix = fmt.Sprintf("test-upload-large-%d", time.Now().UnixNano())

	ctx := context.Background()
	be, err := azure.Create(ctx, *cfg, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]byte, 300*1024*1024)
	if _, err := crandRead(data); err != nil {
		t.Fatal(err)
	}
	key := []byte(fmt.Sprintf("mrcore-large-%d", time.Now().UnixNano()))

	if err := be.Save(ctx, key, backendByteReader(data, be.Hasher())); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := be.Remove(ctx, key); err != nil {
			t.Fatal(err)
		}
	}()

	var tests = []struct {
		offset, length int
	}{
		{0, len(data)},
		{23, 1024},
		{23 + 100*1024, 500},
		{888 + 200*1024, 89999},
		{888 + 100*1024*1024, 120 * 1024 * 1024},
	}

	for _, test := range tests {
		t.Run("", func(t *testing.T) {
			want := data[test.offset : test.offset+test.length]

			buf := make([]byte, test.length)
			err = be.Load(ctx, key, test.length, int64(test.offset), func(rd io.Reader) error {
				_, err := io.ReadFull(rd, buf)
				return err
			})
			if err != nil {
				t.Fatal(err)
			}

			if !bytes.Equal(buf, want) {
				t.Fatalf("wrong bytes returned")
			}
		})
	}
}
