// Package storage provides object-storage existence probes for
// diagnostics.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gopost/repost/internal/logger"
)

// S3Config holds configuration for the S3 client.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // Custom endpoint for MinIO and other S3-compatible storage
	AccessKey string
	SecretKey string
}

// S3Client probes object existence in a single bucket.
type S3Client struct {
	client *s3.Client
	config S3Config
	logger logger.Logger
}

// NewS3Client creates an S3 client. Explicit credentials are optional;
// the default credential chain applies when absent.
func NewS3Client(cfg S3Config, log logger.Logger) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and most S3-compatible storage
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	log.Info("S3 client initialized",
		logger.String("bucket", cfg.Bucket),
		logger.String("region", cfg.Region),
	)

	return &S3Client{
		client: client,
		config: cfg,
		logger: log,
	}, nil
}

// Exists checks whether the object behind ref exists. Ref may be a full
// s3://bucket/key URL or a bare key within the configured bucket.
func (c *S3Client) Exists(ctx context.Context, ref string) (bool, error) {
	bucket, key := c.resolve(ref)

	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// resolve splits an s3:// URL into bucket and key, defaulting to the
// configured bucket and prefix for bare keys.
func (c *S3Client) resolve(ref string) (bucket, key string) {
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		if slash := strings.IndexByte(rest, '/'); slash > 0 {
			return rest[:slash], rest[slash+1:]
		}
		return rest, ""
	}

	key = strings.TrimPrefix(ref, "/")
	if c.config.Prefix != "" {
		key = strings.TrimSuffix(c.config.Prefix, "/") + "/" + key
	}
	return c.config.Bucket, key
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "404")
}
