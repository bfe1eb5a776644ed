// Package gs implements the Google Cloud Storage backing of the remote
// object-store contract, storing a vector's bytes under a raw
// chunk-key/name instead of a typed per-file-type handle.
package gs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"os"
	"path"

	"cloud.google.com/go/storage"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/util"
	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/errors"
)

// Backend stores vector bytes as objects in a GCS bucket, one object per
// key, under cfg.Prefix.
//
// The service account used to access the bucket must have these permissions:
//   - storage.objects.create
//   - storage.objects.delete
//   - storage.objects.get
type Backend struct {
	gcsClient   *storage.Client
	projectID   string
	connections uint
	region      string
	bucket      *storage.BucketHandle
	prefix      string
}

var _ backend.Backend = &Backend{}

func getStorageClient(rt http.RoundTripper) (*storage.Client, error) {
	httpClient := &http.Client{Transport: rt}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	var ts oauth2.TokenSource
	if token := os.Getenv("GOOGLE_ACCESS_TOKEN"); token != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	} else {
		var err error
		ts, err = google.DefaultTokenSource(ctx, storage.ScopeReadWrite)
		if err != nil {
			return nil, err
		}
	}

	oauthClient := oauth2.NewClient(ctx, ts)

	return storage.NewClient(ctx, option.WithHTTPClient(oauthClient))
}

func (be *Backend) bucketExists(ctx context.Context, bucket *storage.BucketHandle) (bool, error) {
	_, err := bucket.Attrs(ctx)
	if err == storage.ErrBucketNotExist {
		return false, nil
	}
	return err == nil, err
}

func open(cfg Config, rt http.RoundTripper) (*Backend, error) {
	debug.Log("open, config %#v", cfg)

	gcsClient, err := getStorageClient(rt)
	if err != nil {
		return nil, errors.Wrap(err, "getStorageClient")
	}

	be := &Backend{
		gcsClient:   gcsClient,
		projectID:   cfg.ProjectID,
		connections: cfg.Connections,
		region:      cfg.Region,
		bucket:      gcsClient.Bucket(cfg.Bucket),
		prefix:      cfg.Prefix,
	}

	return be, nil
}

// Open opens the gs backend at the specified bucket.
func Open(_ context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	return open(cfg, rt)
}

// Create opens the gs backend at the specified bucket and attempts to create
// the bucket if it does not exist yet.
//
// The service account must have the "storage.buckets.create" permission to
// create a bucket that does not yet exist.
func Create(ctx context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	be, err := open(cfg, rt)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	exists, err := be.bucketExists(ctx, be.bucket)
	if err != nil {
		if e, ok := err.(*googleapi.Error); ok && e.Code == http.StatusForbidden {
			return be, nil
		}
		return nil, errors.Wrap(err, "service.Buckets.Get")
	}

	if !exists {
		bucketAttrs := &storage.BucketAttrs{Location: cfg.Region}
		if err := be.bucket.Create(ctx, be.projectID, bucketAttrs); err != nil {
			return nil, errors.Wrap(err, "service.Buckets.Insert")
		}
	}

	return be, nil
}

func (be *Backend) objectName(key []byte) string {
	return path.Join(be.prefix, hex.EncodeToString(key))
}

func (be *Backend) IsNotExist(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist)
}

func (be *Backend) IsPermanentError(err error) bool {
	if be.IsNotExist(err) {
		return true
	}
	if e, ok := err.(*googleapi.Error); ok {
		return e.Code == http.StatusForbidden || e.Code == http.StatusUnauthorized || e.Code == http.StatusRequestedRangeNotSatisfiable
	}
	return false
}

func (be *Backend) Connections() uint { return be.connections }

func (be *Backend) Hasher() hash.Hash { return md5.New() }

// Save stores the data yielded by rd under key. Uploads disable chunked
// resumable transfer so a rate-limited rd isn't buffered ahead of the
// network writer.
func (be *Backend) Save(ctx context.Context, key []byte, rd backend.RewindReader) error {
	objName := be.objectName(key)

	w := be.bucket.Object(objName).NewWriter(ctx)
	w.ChunkSize = 0
	w.MD5 = rd.Hash()
	wbytes, err := io.Copy(w, rd)
	cerr := w.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "service.Objects.Insert")
	}

	if wbytes != rd.Length() {
		return errors.Errorf("wrote %d bytes instead of the expected %d bytes", wbytes, rd.Length())
	}
	return nil
}

func (be *Backend) Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
	return util.DefaultLoad(ctx, key, length, offset, be.openReader, fn)
}

func (be *Backend) openReader(ctx context.Context, key []byte, length int, offset int64) (io.ReadCloser, error) {
	if length == 0 {
		length = -1
	}
	objName := be.objectName(key)
	return be.bucket.Object(objName).NewRangeReader(ctx, offset, int64(length))
}

func (be *Backend) Stat(ctx context.Context, key []byte) (backend.FileInfo, error) {
	objName := be.objectName(key)
	attr, err := be.bucket.Object(objName).Attrs(ctx)
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "service.Objects.Get")
	}
	return backend.FileInfo{Size: attr.Size, Name: objName}, nil
}

func (be *Backend) Remove(ctx context.Context, key []byte) error {
	objName := be.objectName(key)
	err := be.bucket.Object(objName).Delete(ctx)
	if be.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "client.RemoveObject")
}

func (be *Backend) Close() error { return nil }
