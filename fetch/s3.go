package fetch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Source lazily builds an S3 client from the ambient AWS configuration
// (environment, shared config or instance role) the first time an s3://
// locator is fetched.
type s3Source struct {
	region string

	once   sync.Once
	client *s3.Client
	err    error
}

func (s *s3Source) fetch(ctx context.Context, locator string) ([]byte, error) {
	bucket, key, err := parseS3Locator(locator)
	if err != nil {
		return nil, err
	}

	s.once.Do(func() {
		var optFns []func(*config.LoadOptions) error
		if s.region != "" {
			optFns = append(optFns, config.WithRegion(s.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			s.err = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		s.client = s3.NewFromConfig(cfg)
	})
	if s.err != nil {
		return nil, s.err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("s3://%s/%s exceeds %d bytes", bucket, key, MaxImageBytes)
	}
	return data, nil
}

// parseS3Locator splits s3://bucket/key into its parts
func parseS3Locator(locator string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(locator, "s3://")
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 locator %q, want s3://bucket/key", locator)
	}
	return bucket, key, nil
}
