package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Compile-time check that S3Storage implements Storage.
var _ Storage = (*S3Storage)(nil)

// S3Config holds the configuration for the S3 mirror.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	KeyPrefix       string // Optional: prepended to every object key
}

// S3Storage wraps LocalStorage and adds S3 publishing.
// Artifacts still live on local disk; S3 only receives finished outputs.
type S3Storage struct {
	*LocalStorage
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string
	keyPrefix string
}

// NewS3Storage creates a new S3Storage instance rooted at root.
func NewS3Storage(root, publicPrefix string, cfg S3Config) (*S3Storage, error) {
	local, err := NewLocalStorage(root, publicPrefix)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		LocalStorage: local,
		client:       s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		keyPrefix:    strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

// Publish uploads data to S3 and returns the object URL.
func (s *S3Storage) Publish(ctx context.Context, key string, data io.Reader) (string, error) {
	if s.keyPrefix != "" {
		key = s.keyPrefix + "/" + key
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentTypeFor(key)),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
