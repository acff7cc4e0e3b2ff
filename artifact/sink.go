package artifact

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
)

// Sink stores an encoded artifact under name.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// FileSink writes artifacts to the local filesystem; name is a path.
type FileSink struct{}

func (FileSink) Put(_ context.Context, name string, data []byte, _ string) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// MinioSink uploads artifacts to an S3-compatible bucket.
type MinioSink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioSink connects to cfg.URL and makes sure the bucket exists.
func NewMinioSink(ctx context.Context, cfg config.MinioConfig, prefix string) (*MinioSink, error) {
	client, err := minio.New(cfg.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Printf("created bucket %s", cfg.Bucket)
	}
	return &MinioSink{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (s *MinioSink) Put(ctx context.Context, name string, data []byte, contentType string) error {
	object := filepath.ToSlash(filepath.Join(s.prefix, filepath.Base(name)))
	_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", s.bucket, object, err)
	}
	log.Printf("uploaded %s/%s (%d bytes)", s.bucket, object, len(data))
	return nil
}
