// Package azure implements the Azure Blob Storage backing of the remote
// object-store contract, storing a vector's bytes under a raw
// chunk-key/name instead of a typed per-file-type handle.
package azure

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	azContainer "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/util"
	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/errors"
)

// Backend stores vector bytes as blobs in an Azure container, one blob per
// key, under cfg.Prefix.
type Backend struct {
	cfg       Config
	container *azContainer.Client

	accessTier blob.AccessTier
}

const saveLargeSize = 256 * 1024 * 1024

var _ backend.Backend = &Backend{}

// Open connects to the Azure backend described by cfg.
func Open(_ context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	return open(cfg, rt)
}

// Create connects to the Azure backend described by cfg, creating the
// container if it does not exist yet.
func Create(ctx context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	be, err := open(cfg, rt)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	_, err = be.container.GetProperties(ctx, &azContainer.GetPropertiesOptions{})
	if err != nil && bloberror.HasCode(err, bloberror.ContainerNotFound) {
		if _, err = be.container.Create(ctx, &azContainer.CreateOptions{}); err != nil {
			return nil, errors.Wrap(err, "container.Create")
		}
	} else if err != nil && bloberror.HasCode(err, bloberror.AuthorizationFailure) {
		debug.Log("ignoring AuthorizationFailure when calling GetProperties")
	} else if err != nil {
		return be, errors.Wrap(err, "container.GetProperties")
	}

	return be, nil
}

func open(cfg Config, rt http.RoundTripper) (*Backend, error) {
	debug.Log("open, config %#v", cfg)

	if cfg.AccountName == "" {
		return nil, errors.Fatalf("unable to open Azure backend: account name ($AZURE_ACCOUNT_NAME) is empty")
	}

	url := cfg.getURL()

	opts := &azContainer.ClientOptions{
		ClientOptions: azcore.ClientOptions{Transport: &http.Client{Transport: rt}},
	}

	client, err := newContainerClient(cfg, url, opts)
	if err != nil {
		return nil, err
	}

	var accessTier blob.AccessTier
	for _, tier := range supportedAccessTiers() {
		if strings.EqualFold(string(tier), cfg.AccessTier) {
			accessTier = tier
			debug.Log(" - using access tier %v", accessTier)
			break
		}
	}

	return &Backend{cfg: cfg, container: client, accessTier: accessTier}, nil
}

func newContainerClient(cfg Config, url string, opts *azContainer.ClientOptions) (*azContainer.Client, error) {
	switch {
	case cfg.AccountKey.String() != "":
		debug.Log(" - using account key")
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey.Unwrap())
		if err != nil {
			return nil, errors.Wrap(err, "NewSharedKeyCredential")
		}
		client, err := azContainer.NewClientWithSharedKeyCredential(url, cred, opts)
		return client, errors.Wrap(err, "NewClientWithSharedKeyCredential")

	case cfg.AccountSAS.String() != "":
		debug.Log(" - using sas token")
		sas := strings.TrimPrefix(cfg.AccountSAS.Unwrap(), "?")
		client, err := azContainer.NewClientWithNoCredential(fmt.Sprintf("%s?%s", url, sas), opts)
		return client, errors.Wrap(err, "NewClientWithNoCredential")

	default:
		var cred azcore.TokenCredential
		var err error
		if cfg.ForceCliCredential {
			debug.Log(" - using AzureCLICredential")
			cred, err = azidentity.NewAzureCLICredential(nil)
		} else {
			debug.Log(" - using DefaultAzureCredential")
			cred, err = azidentity.NewDefaultAzureCredential(nil)
		}
		if err != nil {
			return nil, errors.Wrap(err, "credential")
		}
		client, err := azContainer.NewClient(url, cred, opts)
		return client, errors.Wrap(err, "NewClient")
	}
}

func supportedAccessTiers() []blob.AccessTier {
	return []blob.AccessTier{blob.AccessTierHot, blob.AccessTierCool, blob.AccessTierCold, blob.AccessTierArchive}
}

func (be *Backend) objectName(key []byte) string {
	return path.Join(be.cfg.Prefix, hex.EncodeToString(key))
}

func (be *Backend) Connections() uint { return be.cfg.Connections }

// Hasher returns md5.New: Azure's block-upload API validates each staged
// block against an MD5 digest, so every Save computes one.
func (be *Backend) Hasher() hash.Hash { return md5.New() }

func (be *Backend) IsNotExist(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound)
}

func (be *Backend) IsPermanentError(err error) bool {
	if be.IsNotExist(err) {
		return true
	}
	var aerr *azcore.ResponseError
	if errors.As(err, &aerr) {
		return aerr.StatusCode == http.StatusRequestedRangeNotSatisfiable ||
			aerr.StatusCode == http.StatusUnauthorized ||
			aerr.StatusCode == http.StatusForbidden
	}
	return false
}

// Save stores the data yielded by rd under key, staging it as one block for
// small payloads or many for large ones, since object stores hold whole
// vectors, which can exceed Azure's single-block limits.
func (be *Backend) Save(ctx context.Context, key []byte, rd backend.RewindReader) error {
	objName := be.objectName(key)

	var accessTier blob.AccessTier
	if !strings.EqualFold(be.cfg.AccessTier, "archive") {
		accessTier = be.accessTier
	}

	if rd.Length() < saveLargeSize {
		return be.saveSmall(ctx, objName, rd, accessTier)
	}
	return be.saveLarge(ctx, objName, rd, accessTier)
}

func (be *Backend) saveSmall(ctx context.Context, objName string, rd backend.RewindReader, accessTier blob.AccessTier) error {
	blockBlobClient := be.container.NewBlockBlobClient(objName)

	buf := make([]byte, rd.Length())
	if _, err := io.ReadFull(rd, buf); err != nil {
		return errors.Wrap(err, "ReadFull")
	}

	id := base64.StdEncoding.EncodeToString(rd.Hash())
	_, err := blockBlobClient.StageBlock(ctx, id, streaming.NopCloser(bytes.NewReader(buf)), &blockblob.StageBlockOptions{
		TransactionalValidation: blob.TransferValidationTypeMD5(rd.Hash()),
	})
	if err != nil {
		return errors.Wrap(err, "StageBlock")
	}

	_, err = blockBlobClient.CommitBlockList(ctx, []string{id}, &blockblob.CommitBlockListOptions{Tier: &accessTier})
	return errors.Wrap(err, "CommitBlockList")
}

func (be *Backend) saveLarge(ctx context.Context, objName string, rd backend.RewindReader, accessTier blob.AccessTier) error {
	blockBlobClient := be.container.NewBlockBlobClient(objName)

	buf := make([]byte, 100*1024*1024)
	var blocks []string
	uploaded := 0

	for {
		n, err := io.ReadFull(rd, buf)
		if err == io.ErrUnexpectedEOF {
			err = nil
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "ReadFull")
		}

		chunk := buf[:n]
		uploaded += n
		h := md5.Sum(chunk)
		id := base64.StdEncoding.EncodeToString(h[:])

		_, err = blockBlobClient.StageBlock(ctx, id, streaming.NopCloser(bytes.NewReader(chunk)), &blockblob.StageBlockOptions{
			TransactionalValidation: blob.TransferValidationTypeMD5(h[:]),
		})
		if err != nil {
			return errors.Wrap(err, "StageBlock")
		}
		blocks = append(blocks, id)
	}

	if uploaded != int(rd.Length()) {
		return errors.Errorf("wrote %d bytes instead of the expected %d bytes", uploaded, rd.Length())
	}

	_, err := blockBlobClient.CommitBlockList(ctx, blocks, &blockblob.CommitBlockListOptions{Tier: &accessTier})
	return errors.Wrap(err, "CommitBlockList")
}

func (be *Backend) Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
	return util.DefaultLoad(ctx, key, length, offset, be.openReader, fn)
}

func (be *Backend) openReader(ctx context.Context, key []byte, length int, offset int64) (io.ReadCloser, error) {
	objName := be.objectName(key)
	blockBlobClient := be.container.NewBlobClient(objName)

	resp, err := blockBlobClient.DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: azblob.HTTPRange{Offset: offset, Count: int64(length)},
	})
	if err != nil {
		return nil, err
	}

	if length > 0 && (resp.ContentLength == nil || *resp.ContentLength != int64(length)) {
		_ = resp.Body.Close()
		return nil, &azcore.ResponseError{ErrorCode: "file-too-short", StatusCode: http.StatusRequestedRangeNotSatisfiable}
	}

	return resp.Body, nil
}

func (be *Backend) Stat(ctx context.Context, key []byte) (backend.FileInfo, error) {
	objName := be.objectName(key)
	props, err := be.container.NewBlobClient(objName).GetProperties(ctx, nil)
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "blob.GetProperties")
	}
	return backend.FileInfo{Size: *props.ContentLength, Name: objName}, nil
}

func (be *Backend) Remove(ctx context.Context, key []byte) error {
	_, err := be.container.NewBlobClient(be.objectName(key)).Delete(ctx, &azblob.DeleteBlobOptions{})
	if be.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "blob.Delete")
}

func (be *Backend) Close() error { return nil }
