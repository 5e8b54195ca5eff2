package media

import (
	"context"
	"errors"
	"testing"
)

func TestReadyOnceRetriesAfterFailure(t *testing.T) {
	var gate readyOnce
	calls := 0
	failing := errors.New("s3 unreachable")

	check := func(context.Context) error {
		calls++
		if calls == 1 {
			return failing
		}
		return nil
	}

	if err := gate.Do(context.Background(), check); !errors.Is(err, failing) {
		t.Fatalf("expected first check to fail, got %v", err)
	}
	if err := gate.Do(context.Background(), check); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if err := gate.Do(context.Background(), check); err != nil {
		t.Fatalf("expected cached success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("check should stop running after success, ran %d times", calls)
	}
}

func TestS3StorageEnsureBucketRequiresClient(t *testing.T) {
	if err := NewS3Storage(nil, "media", "").EnsureBucket(context.Background()); err == nil {
		t.Fatalf("expected error without a client")
	}
}

func TestS3StoragePublicURLEscapesKey(t *testing.T) {
	storage := NewS3Storage(nil, "media", "https://cdn.example.com/")

	got, ok := storage.PublicURL("users/a b.png")
	if !ok || got != "https://cdn.example.com/media/users/a%20b.png" {
		t.Fatalf("unexpected public url: %q ok=%v", got, ok)
	}
	if _, ok := NewS3Storage(nil, "media", "").PublicURL("k"); ok {
		t.Fatalf("public url must be unavailable without a base url")
	}
}
