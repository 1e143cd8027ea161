package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/videotube/account-service/internal/core/domain"
)

// S3Config selects the bucket and credentials. Endpoint is set for
// S3-compatible stores (MinIO, R2); PublicBaseURL overrides the URL returned
// to clients, e.g. a CDN in front of the bucket.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// objectAPI is the subset of *s3.Client the uploader calls.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Uploader struct {
	api     objectAPI
	bucket  string
	baseURL string
}

// NewS3Uploader builds an S3 client from cfg. Static credentials are used
// when AccessKey is set, otherwise the default AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.PublicBaseURL
	if base == "" {
		switch {
		case cfg.Endpoint != "":
			base = publicURL(cfg.Endpoint, cfg.Bucket)
		default:
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return newS3Uploader(client, cfg.Bucket, base), nil
}

func newS3Uploader(api objectAPI, bucket, baseURL string) *S3Uploader {
	return &S3Uploader{api: api, bucket: bucket, baseURL: baseURL}
}

func (u *S3Uploader) Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (domain.Media, error) {
	key := objectKey(prefix, filename)
	in := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := u.api.PutObject(ctx, in); err != nil {
		return domain.Media{}, fmt.Errorf("s3 put %s: %w", key, err)
	}
	return domain.Media{Key: key, URL: publicURL(u.baseURL, key)}, nil
}

func (u *S3Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}
