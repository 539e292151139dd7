// Package media stores photo bytes in an S3-compatible bucket and
// hands out presigned URLs for the model's vision input.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config configures an S3-compatible media store. Endpoint and
// UsePathStyle support MinIO-style deployments.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool

	// PresignTTL bounds how long presigned GET URLs stay valid.
	// Default: 15 minutes
	PresignTTL time.Duration
}

// S3Store stores photos in an S3-compatible bucket.
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	prefix     string
	presignTTL time.Duration
}

// NewS3Store creates a new S3-backed media store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}

	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		presignTTL: cfg.PresignTTL,
	}, nil
}

// UploadPhoto stores photo bytes under memories/{eventID}/{uuid} and
// returns the object key. An eventID of 0 files the photo under the
// inbox prefix until a memory claims it.
func (s *S3Store) UploadPhoto(ctx context.Context, eventID int64, data io.Reader, mimeType string) (string, error) {
	scope := "inbox"
	if eventID > 0 {
		scope = fmt.Sprintf("%d", eventID)
	}
	key := s.objectKey(path.Join("memories", scope, uuid.New().String()))

	input := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   data,
	}
	if mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return key, nil
}

// PresignURL returns a time-limited GET URL for an object key.
func (s *S3Store) PresignURL(ctx context.Context, key string) (string, error) {
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	return out.URL, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
