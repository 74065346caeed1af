package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ywcorp/corploango/internal/config"
)

// Store wraps the MinIO client for document bytes. The database keeps only
// bucket/key/url metadata; all file content lives here.
type Store struct {
	client *minio.Client
	bucket string
	region string
	useSSL bool
}

// New creates a Store from configuration. The connection is lazy; call
// EnsureBucket or Ping to verify reachability.
func New(cfg config.StorageConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		useSSL: cfg.UseSSL,
	}, nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		log.Printf("✅ Bucket verified: %s", s.bucket)
		return nil
	}

	log.Printf("📦 Creating bucket: %s", s.bucket)
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// UploadResult reports where an object landed.
type UploadResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	URL    string `json:"url"`
	ETag   string `json:"etag"`
}

// Upload streams one object into the bucket.
func (s *Store) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"uploaded-at": time.Now().UTC().Format(time.RFC3339),
			"system":      "corp-loan-system",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("object upload failed: %w", err)
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}

	return &UploadResult{
		Bucket: info.Bucket,
		Key:    info.Key,
		URL:    fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, info.Bucket, info.Key),
		ETag:   info.ETag,
	}, nil
}

// PresignedURL issues a time-limited download URL for direct client access.
func (s *Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object url: %w", err)
	}
	return u.String(), nil
}

// Delete removes one object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// BucketStats summarizes the objects under a prefix.
type BucketStats struct {
	TotalFiles int   `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
}

// Stats walks the bucket under prefix and counts objects and bytes.
func (s *Store) Stats(ctx context.Context, prefix string) (*BucketStats, error) {
	stats := &BucketStats{}
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}
		stats.TotalFiles++
		stats.TotalSize += object.Size
	}
	return stats, nil
}

// Ping verifies the object store answers at all.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
