package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const archiveContentType = "application/zip"

// ObjectStoreConfig locates an S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
}

// ObjectStorePublisher uploads archives to an S3-compatible bucket, creating
// the bucket on first use.
type ObjectStorePublisher struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewObjectStorePublisher validates cfg and creates the client. No request is
// made until the first Publish.
func NewObjectStorePublisher(cfg ObjectStoreConfig) (*ObjectStorePublisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("object store access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	return &ObjectStorePublisher{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (p *ObjectStorePublisher) Target() string { return "s3" }

func (p *ObjectStorePublisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// ObjectKey is the key an archive is stored under.
func (p *ObjectStorePublisher) ObjectKey(filename string) string {
	if p.prefix == "" {
		return filename
	}
	return path.Join(p.prefix, filename)
}

// Publish uploads the archive and returns its s3:// location.
func (p *ObjectStorePublisher) Publish(ctx context.Context, filename string, archive []byte) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", publishError(p.Target(), "archive name is required", nil)
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", publishError(p.Target(), "failed to prepare bucket %s", err, p.bucket)
	}

	key := p.ObjectKey(filename)
	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(archive), int64(len(archive)), minio.PutObjectOptions{
		ContentType: archiveContentType,
	})
	if err != nil {
		return "", publishError(p.Target(), "failed to upload %s", err, key)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

var _ Publisher = (*ObjectStorePublisher)(nil)
