package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/videotube/account-service/internal/core/domain"
)

// GCSConfig selects the bucket. Application default credentials are used when
// CredentialsFile is empty.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	PublicBaseURL   string
}

type GCSUploader struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewGCSUploader(ctx context.Context, cfg GCSConfig) (*GCSUploader, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &GCSUploader{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (domain.Media, error) {
	key := objectKey(prefix, filename)

	wc := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // avatars are small; one request per object
	if _, err := io.Copy(wc, body); err != nil {
		_ = wc.Close()
		return domain.Media{}, fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return domain.Media{}, fmt.Errorf("gcs close %s: %w", key, err)
	}
	return domain.Media{Key: key, URL: publicURL(u.baseURL, key)}, nil
}

func (u *GCSUploader) Delete(ctx context.Context, key string) error {
	err := u.client.Bucket(u.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}
	return nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
