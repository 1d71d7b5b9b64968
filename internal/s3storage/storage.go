// Package s3storage wraps MinIO/S3 interactions for pending uploads and
// finished summaries. Uploads live in object storage so the worker can run on
// a different host than the API.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pa-tiq/synthia-api/internal/config"
)

// Storage holds the MinIO client plus the two bucket names.
type Storage struct {
	client        *minio.Client
	uploadBucket  string
	summaryBucket string
	region        string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:        client,
		uploadBucket:  cfg.UploadBucket,
		summaryBucket: cfg.SummaryBucket,
		region:        cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure both buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.summaryBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// UploadPending stores an uploaded file for the worker to pick up.
func (s *Storage) UploadPending(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.uploadBucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload pending object: %w", err)
	}
	return nil
}

// DownloadPending fetches the raw upload bytes for processing.
func (s *Storage) DownloadPending(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.uploadBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get pending object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read pending object: %w", err)
	}
	return buf, nil
}

// RemovePending deletes a processed upload. Workers call this on every exit
// path so no input file outlives its job.
func (s *Storage) RemovePending(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.uploadBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove pending object: %w", err)
	}
	return nil
}

// UploadSummary stores the finished summary text.
func (s *Storage) UploadSummary(ctx context.Context, objectKey string, data []byte) error {
	reader := bytes.NewReader(data)
	opts := minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"}
	if _, err := s.client.PutObject(ctx, s.summaryBucket, objectKey, reader, int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload summary object: %w", err)
	}
	return nil
}

// PresignSummaryURL returns a signed GET URL for a finished summary.
func (s *Storage) PresignSummaryURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.summaryBucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign summary object: %w", err)
	}
	return u.String(), nil
}
