package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

func NewClient(cfg Config) (*minio.Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client for %s: %w", endpoint, err)
	}

	return client, nil
}

// EnsureBucket creates bucket when it does not exist yet. It reports whether
// the bucket was created.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string) (bool, error) {
	if client == nil {
		return false, fmt.Errorf("s3 client is nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return false, fmt.Errorf("s3 bucket is required")
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if exists {
		return false, nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// another instance may have won the race
		if resp := minio.ToErrorResponse(err); resp.Code == "BucketAlreadyOwnedByYou" {
			return false, nil
		}
		return false, fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return true, nil
}
