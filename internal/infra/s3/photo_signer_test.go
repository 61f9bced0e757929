package s3

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestPhotoURLPassesThroughAbsoluteURLs(t *testing.T) {
	signer := NewPhotoSigner(nil, "photos", time.Hour)

	got, err := signer.PhotoURL(context.Background(), "https://cdn.example.com/a.jpg")
	if err != nil {
		t.Fatalf("photo url: %v", err)
	}
	if got != "https://cdn.example.com/a.jpg" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestPhotoURLEmptyKey(t *testing.T) {
	signer := NewPhotoSigner(nil, "photos", time.Hour)

	got, err := signer.PhotoURL(context.Background(), " ")
	if err != nil || got != "" {
		t.Fatalf("expected empty url without error, got %q, %v", got, err)
	}
}

func TestPhotoURLPresignsObjectKeys(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "localhost:9000", AccessKey: "minio", SecretKey: "minio123"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	signer := NewPhotoSigner(client, "photos", 10*time.Minute)

	got, err := signer.PhotoURL(context.Background(), "items/7/cover.jpg")
	if err != nil {
		t.Fatalf("photo url: %v", err)
	}
	if !strings.Contains(got, "/photos/items/7/cover.jpg") {
		t.Fatalf("unexpected presigned url: %s", got)
	}
	if !strings.Contains(got, "X-Amz-Signature=") {
		t.Fatalf("expected signed url, got %s", got)
	}
}
