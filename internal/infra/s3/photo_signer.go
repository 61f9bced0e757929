package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

const defaultPhotoURLTTL = 6 * time.Hour

// PhotoSigner turns stored photo object keys into short-lived GET URLs for
// event payloads. Values that are already absolute URLs pass through.
type PhotoSigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewPhotoSigner(client *minio.Client, bucket string, ttl time.Duration) *PhotoSigner {
	if ttl <= 0 {
		ttl = defaultPhotoURLTTL
	}
	return &PhotoSigner{
		client: client,
		bucket: strings.TrimSpace(bucket),
		ttl:    ttl,
	}
}

func (s *PhotoSigner) PhotoURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	if s == nil || s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return "", fmt.Errorf("s3 bucket is empty")
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign photo %q: %w", key, err)
	}
	return u.String(), nil
}
