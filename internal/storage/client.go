// Package storage issues presigned download URLs from an S3-compatible
// object store (R2, B2, MinIO or S3 itself).
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds the object store endpoint and credentials.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Client presigns object reads.
type Client struct {
	presign *s3.PresignClient
}

// New builds a client. An empty endpoint targets AWS S3.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage: access key and secret key are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
			o.UsePathStyle = true
		}
	})
	return &Client{presign: s3.NewPresignClient(s3Client)}, nil
}

// PresignGet returns a GET URL for bucket/key valid for ttl.
func (c *Client) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("storage: bucket and key must not be empty")
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
