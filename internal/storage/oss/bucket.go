// Package oss adapts an Alibaba Cloud OSS bucket to blob.Bucket.
package oss

import (
	"context"
	"io"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
	"github.com/go-faster/errors"

	"github.com/xenking/catalog-entry/internal/storage/blob"
)

// Config holds the OSS endpoint and static credentials.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
}

var _ blob.Bucket = (*Bucket)(nil)

// Bucket implements blob.Bucket for a single OSS bucket.
type Bucket struct {
	client *oss.Client
	name   string
}

// NewBucket creates an OSS client for cfg. Static credentials are used when
// set, otherwise they are read from OSS_ACCESS_KEY_ID/OSS_ACCESS_KEY_SECRET.
func NewBucket(cfg Config) (*Bucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("oss bucket is required")
	}

	var provider credentials.CredentialsProvider
	if cfg.AccessKeyID != "" {
		provider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret)
	} else {
		provider = credentials.NewEnvironmentVariableCredentialsProvider()
	}

	ossCfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(provider).
		WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		ossCfg = ossCfg.WithEndpoint(cfg.Endpoint)
	}

	return &Bucket{client: oss.NewClient(ossCfg), name: cfg.Bucket}, nil
}

// Exists reports whether an object is stored under key.
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := b.client.IsObjectExist(ctx, b.name, key)
	if err != nil {
		return false, errors.Wrapf(err, "head %s", key)
	}
	return ok, nil
}

// Put uploads body under key, overwriting an existing object.
func (b *Bucket) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if _, err := b.client.PutObject(ctx, &oss.PutObjectRequest{
		Bucket:        oss.Ptr(b.name),
		Key:           oss.Ptr(key),
		ContentType:   oss.Ptr(contentType),
		ContentLength: oss.Ptr(size),
		Body:          body,
	}); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	return nil
}

// Delete removes the object stored under key.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if _, err := b.client.DeleteObject(ctx, &oss.DeleteObjectRequest{
		Bucket: oss.Ptr(b.name),
		Key:    oss.Ptr(key),
	}); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (b *Bucket) Ping(ctx context.Context) error {
	ok, err := b.client.IsBucketExist(ctx, b.name)
	if err != nil {
		return errors.Wrap(err, "check bucket")
	}
	if !ok {
		return errors.Errorf("bucket %s does not exist", b.name)
	}
	return nil
}
