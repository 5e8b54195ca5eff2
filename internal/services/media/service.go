package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation = errors.New("validation error")
	ErrExists     = errors.New("object already exists")
	ErrTooLarge   = errors.New("file too large")
)

const (
	DefaultMaxUploadBytes = 20 << 20
	// presignedURLTTL is used when the bucket has no public base url.
	presignedURLTTL = 7 * 24 * time.Hour
	cacheControl    = "max-age=3600"
)

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType, cacheControl string) error
	PublicURL(key string) (string, bool)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Service struct {
	storage  ObjectStorage
	maxBytes int64
}

type Upload struct {
	Path        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func NewService(storage ObjectStorage, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Service{
		storage:  storage,
		maxBytes: maxBytes,
	}
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// UploadPhoto stores the file under the caller's own prefix and returns a URL for it.
// Existing objects are never overwritten.
func (s *Service) UploadPhoto(ctx context.Context, userID string, in Upload) (string, error) {
	if in.Body == nil || in.Size <= 0 {
		return "", fmt.Errorf("file is required: %w", ErrValidation)
	}
	if in.Size > s.maxBytes {
		return "", ErrTooLarge
	}
	if s.storage == nil {
		return "", fmt.Errorf("object storage is not configured")
	}

	key, err := ObjectKey(userID, in.Path)
	if err != nil {
		return "", err
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("stat object: %w", err)
	}
	if exists {
		return "", ErrExists
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.storage.Put(ctx, key, in.Body, in.Size, contentType, cacheControl); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	if url, ok := s.storage.PublicURL(key); ok {
		return url, nil
	}
	url, err := s.storage.PresignGet(ctx, key, presignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign object url: %w", err)
	}
	return url, nil
}

// ObjectKey scopes a client supplied relative path under userID.
func ObjectKey(userID, relPath string) (string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", fmt.Errorf("invalid owner: %w", ErrValidation)
	}

	relPath = strings.TrimSpace(strings.ReplaceAll(relPath, "\\", "/"))
	if relPath == "" {
		return "", fmt.Errorf("path is required: %w", ErrValidation)
	}
	if strings.HasPrefix(relPath, "/") {
		return "", fmt.Errorf("path must be relative: %w", ErrValidation)
	}
	for _, segment := range strings.Split(relPath, "/") {
		if segment == ".." {
			return "", fmt.Errorf("path must not leave the user folder: %w", ErrValidation)
		}
	}

	cleaned := path.Clean(relPath)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("path is required: %w", ErrValidation)
	}

	return userID + "/" + cleaned, nil
}
