package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	s3Scheme     = "s3://"
	duckdbScheme = "duckdb://"
)

var ErrNoS3Endpoint = errors.New("s3 endpoint is not configured")

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

type Options struct {
	S3 S3Config
	// Stdin is read for the "-" source, os.Stdin when nil.
	Stdin io.Reader
}

// Open returns a reader over source: a file path, "-" for stdin or
// s3://bucket/key.
func Open(ctx context.Context, source string, opts Options) (io.ReadCloser, error) {
	switch {
	case source == "-":
		if opts.Stdin != nil {
			return io.NopCloser(opts.Stdin), nil
		}
		return io.NopCloser(os.Stdin), nil
	case strings.HasPrefix(source, s3Scheme):
		return openS3(ctx, source, opts.S3)
	}
	return os.Open(source)
}

func parseS3URL(source string) (bucket, key string, err error) {
	bucket, key, _ = strings.Cut(strings.TrimPrefix(source, s3Scheme), "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 source %q, expected s3://bucket/key", source)
	}
	return bucket, key, nil
}

func openS3(ctx context.Context, source string, cfg S3Config) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(source)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, ErrNoS3Endpoint
	}
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	obj, err := minioClient.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", source, err)
	}
	return obj, nil
}
