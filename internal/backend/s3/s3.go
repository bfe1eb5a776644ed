// Package s3 implements the S3-compatible object-store backing of the
// remote object-store contract, storing a vector's bytes under a raw
// chunk-key/name instead of a typed per-file-type handle.
package s3

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/coldeck/mrcore/internal/backend"
	"github.com/coldeck/mrcore/internal/backend/util"
	"github.com/coldeck/mrcore/internal/debug"
	"github.com/coldeck/mrcore/internal/errors"
)

// Backend stores vector bytes as objects in an S3-compatible bucket, one
// object per key, under cfg.Prefix.
type Backend struct {
	client *minio.Client
	cfg    Config
}

var _ backend.Backend = &Backend{}

func open(cfg Config, rt http.RoundTripper) (*Backend, error) {
	debug.Log("open, config %#v", cfg)

	if cfg.KeyID == "" && cfg.Secret.String() != "" {
		return nil, errors.Fatalf("unable to open S3 backend: Key ID ($AWS_ACCESS_KEY_ID) is empty")
	} else if cfg.KeyID != "" && cfg.Secret.String() == "" {
		return nil, errors.Fatalf("unable to open S3 backend: Secret ($AWS_SECRET_ACCESS_KEY) is empty")
	}

	if cfg.MaxRetries > 0 {
		minio.MaxRetry = int(cfg.MaxRetries)
	}

	creds, err := getCredentials(cfg, rt)
	if err != nil {
		return nil, errors.Wrap(err, "s3.getCredentials")
	}

	opts := &minio.Options{
		Creds:     creds,
		Secure:    !cfg.UseHTTP,
		Region:    cfg.Region,
		Transport: rt,
	}

	switch strings.ToLower(cfg.BucketLookup) {
	case "", "auto":
		opts.BucketLookup = minio.BucketLookupAuto
	case "dns":
		opts.BucketLookup = minio.BucketLookupDNS
	case "path":
		opts.BucketLookup = minio.BucketLookupPath
	default:
		return nil, fmt.Errorf(`bad bucket-lookup style %q must be "auto", "path" or "dns"`, cfg.BucketLookup)
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, errors.Wrap(err, "minio.New")
	}

	return &Backend{client: client, cfg: cfg}, nil
}

// getCredentials runs through the various credential types and returns the
// first one that works, optionally assuming a configured IAM role on top.
func getCredentials(cfg Config, tr http.RoundTripper) (*credentials.Credentials, error) {
	if cfg.UnsafeAnonymousAuth {
		return credentials.New(&credentials.Static{}), nil
	}

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.Static{
			Value: credentials.Value{
				AccessKeyID:     cfg.KeyID,
				SecretAccessKey: cfg.Secret.Unwrap(),
			},
		},
		&credentials.EnvMinio{},
		&credentials.FileAWSCredentials{},
		&credentials.FileMinioClient{},
		&credentials.IAM{},
	})
	client := &http.Client{Transport: tr}

	c, err := creds.GetWithContext(&credentials.CredContext{Client: client})
	if err != nil {
		return nil, errors.Wrap(err, "creds.Get")
	}

	if c.SignerType == credentials.SignatureAnonymous {
		return nil, fmt.Errorf("no credentials found. Use `-o s3.unsafe-anonymous-auth=true` for anonymous authentication")
	}

	roleArn := os.Getenv("MRCORE_AWS_ASSUME_ROLE_ARN")
	if roleArn != "" {
		awsRegion := cfg.Region
		if os.Getenv("MRCORE_AWS_ASSUME_ROLE_REGION") != "" {
			awsRegion = os.Getenv("MRCORE_AWS_ASSUME_ROLE_REGION")
		}

		sessionName := os.Getenv("MRCORE_AWS_ASSUME_ROLE_SESSION_NAME")
		externalID := os.Getenv("MRCORE_AWS_ASSUME_ROLE_EXTERNAL_ID")
		policy := os.Getenv("MRCORE_AWS_ASSUME_ROLE_POLICY")
		stsEndpoint := os.Getenv("MRCORE_AWS_ASSUME_ROLE_STS_ENDPOINT")

		if stsEndpoint == "" {
			if awsRegion != "" {
				if strings.HasPrefix(awsRegion, "cn-") {
					stsEndpoint = "https://sts." + awsRegion + ".amazonaws.com.cn"
				} else {
					stsEndpoint = "https://sts." + awsRegion + ".amazonaws.com"
				}
			} else {
				stsEndpoint = "https://sts.amazonaws.com"
			}
		}

		opts := credentials.STSAssumeRoleOptions{
			RoleARN:         roleArn,
			AccessKey:       c.AccessKeyID,
			SecretKey:       c.SecretAccessKey,
			SessionToken:    c.SessionToken,
			RoleSessionName: sessionName,
			ExternalID:      externalID,
			Policy:          policy,
			Location:        awsRegion,
		}

		creds, err = credentials.NewSTSAssumeRole(stsEndpoint, opts)
		if err != nil {
			return nil, errors.Wrap(err, "creds.AssumeRole")
		}
	}

	return creds, nil
}

// Open opens the S3 backend at bucket and region.
func Open(_ context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	return open(cfg, rt)
}

// Create opens the S3 backend at bucket and region and creates the bucket
// if it does not exist yet.
func Create(ctx context.Context, cfg Config, rt http.RoundTripper) (*Backend, error) {
	be, err := open(cfg, rt)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	found, err := be.client.BucketExists(ctx, cfg.Bucket)

	if err != nil && isAccessDenied(err) {
		err = nil
		found = true
	}
	if err != nil {
		debug.Log("BucketExists(%v) returned err %v", cfg.Bucket, err)
		return nil, errors.Wrap(err, "client.BucketExists")
	}

	if !found {
		if err := be.client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "client.MakeBucket")
		}
	}

	return be, nil
}

func isAccessDenied(err error) bool {
	var e minio.ErrorResponse
	return errors.As(err, &e) && e.Code == "AccessDenied"
}

func (be *Backend) objectName(key []byte) string {
	return path.Join(be.cfg.Prefix, hex.EncodeToString(key))
}

func (be *Backend) IsNotExist(err error) bool {
	var e minio.ErrorResponse
	return errors.As(err, &e) && e.Code == "NoSuchKey"
}

func (be *Backend) IsPermanentError(err error) bool {
	if be.IsNotExist(err) {
		return true
	}
	var merr minio.ErrorResponse
	if errors.As(err, &merr) {
		return merr.Code == "InvalidRange" || merr.Code == "AccessDenied"
	}
	return false
}

func (be *Backend) Connections() uint { return be.cfg.Connections }

// Hasher returns nil: the minio client computes the content MD5 itself when
// SendContentMd5 is requested, so no caller-side hashing is required.
func (be *Backend) Hasher() hash.Hash { return nil }

func (be *Backend) Save(ctx context.Context, key []byte, rd backend.RewindReader) error {
	objName := be.objectName(key)

	opts := minio.PutObjectOptions{
		ContentType:    "application/octet-stream",
		SendContentMd5: true,
		PartSize:       200 * 1024 * 1024,
	}
	if be.cfg.StorageClass != "" {
		opts.StorageClass = be.cfg.StorageClass
	}

	info, err := be.client.PutObject(ctx, be.cfg.Bucket, objName, io.NopCloser(rd), rd.Length(), opts)
	if err == nil && info.Size != rd.Length() {
		return errors.Errorf("wrote %d bytes instead of the expected %d bytes", info.Size, rd.Length())
	}

	return errors.Wrap(err, "client.PutObject")
}

func (be *Backend) Load(ctx context.Context, key []byte, length int, offset int64, fn func(rd io.Reader) error) error {
	return util.DefaultLoad(ctx, key, length, offset, be.openReader, fn)
}

func (be *Backend) openReader(ctx context.Context, key []byte, length int, offset int64) (io.ReadCloser, error) {
	objName := be.objectName(key)
	opts := minio.GetObjectOptions{}

	var err error
	if length > 0 {
		err = opts.SetRange(offset, offset+int64(length)-1)
	} else if offset > 0 {
		err = opts.SetRange(offset, 0)
	}
	if err != nil {
		return nil, errors.Wrap(err, "SetRange")
	}

	coreClient := minio.Core{Client: be.client}
	rd, info, _, err := coreClient.GetObject(ctx, be.cfg.Bucket, objName, opts)
	if err != nil {
		return nil, err
	}

	if length > 0 && info.Size > 0 && info.Size != int64(length) {
		_ = rd.Close()
		return nil, minio.ErrorResponse{Code: "InvalidRange", Message: "file-too-short"}
	}

	return rd, err
}

func (be *Backend) Stat(ctx context.Context, key []byte) (bi backend.FileInfo, err error) {
	objName := be.objectName(key)

	obj, err := be.client.GetObject(ctx, be.cfg.Bucket, objName, minio.GetObjectOptions{})
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "client.GetObject")
	}
	defer func() {
		e := obj.Close()
		if err == nil {
			err = errors.Wrap(e, "Close")
		}
	}()

	fi, err := obj.Stat()
	if err != nil {
		return backend.FileInfo{}, errors.Wrap(err, "Stat")
	}

	return backend.FileInfo{Size: fi.Size, Name: objName}, nil
}

func (be *Backend) Remove(ctx context.Context, key []byte) error {
	objName := be.objectName(key)
	err := be.client.RemoveObject(ctx, be.cfg.Bucket, objName, minio.RemoveObjectOptions{})
	if be.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "client.RemoveObject")
}

func (be *Backend) Close() error { return nil }
