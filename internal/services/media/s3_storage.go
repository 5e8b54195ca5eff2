package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

type S3Storage struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string

	bucketReady readyOnce
}

func NewS3Storage(client *minio.Client, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		bucket:        strings.TrimSpace(bucket),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	err := s.bucketReady.Do(ctx, func(ctx context.Context) error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})
	if err != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, err)
	}

	return nil
}

// readyOnce runs fn until it succeeds once. Failures are not remembered, so a
// later call retries.
type readyOnce struct {
	mu    sync.Mutex
	ready bool
}

func (o *readyOnce) Do(ctx context.Context, fn func(context.Context) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	o.ready = true
	return nil
}

func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("s3 client is nil")
	}

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

func (s *S3Storage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType, cacheControl string) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if key == "" || body == nil || size == 0 {
		return ErrValidation
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		return fmt.Errorf("put object to s3: %w", err)
	}

	return nil
}

// PublicURL is only available when the bucket is served from a public base url.
func (s *S3Storage) PublicURL(key string) (string, bool) {
	if s.publicBaseURL == "" || key == "" {
		return "", false
	}
	return s.publicBaseURL + "/" + s.bucket + "/" + (&url.URL{Path: key}).EscapedPath(), true
}

func (s *S3Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if key == "" {
		return "", ErrValidation
	}
	if ttl <= 0 {
		ttl = presignedURLTTL
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}

	return presigned.String(), nil
}
