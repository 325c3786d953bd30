// Package photostore keeps time-clock photos in a MinIO bucket so the API
// payload carries a URL instead of the base64 image.
package photostore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// URLExpiry is how long the presigned GET sent to the API stays valid.
	URLExpiry time.Duration
}

type MinIO struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinIO(ctx context.Context, cfg Config) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 7 * 24 * time.Hour
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Printf("Bucket %s criado", cfg.Bucket)
	}

	log.Printf("MinIO em %s (bucket %s)", cfg.Endpoint, cfg.Bucket)
	return &MinIO{client: client, bucket: cfg.Bucket, expiry: cfg.URLExpiry}, nil
}

// Put implements client.PhotoStore.
func (m *MinIO) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, make(url.Values))
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
