package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/config"
)

// Archive stores rendered reports under a key.
type Archive interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// NewArchive picks an archive from configuration. It returns nil when
// archiving is not configured.
func NewArchive(ctx context.Context, cfg config.ReportsConfig) (Archive, error) {
	switch {
	case cfg.S3.Enabled():
		return NewS3Archive(ctx, cfg.S3)
	case cfg.Dir != "":
		return &LocalArchive{Dir: cfg.Dir}, nil
	default:
		return nil, nil
	}
}

// LocalArchive keeps reports as files in a directory.
type LocalArchive struct {
	Dir string
}

func (a *LocalArchive) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", apperr.Validation("key", "invalid archive key")
	}
	return filepath.Join(a.Dir, key), nil
}

// Put writes the report, creating the directory if needed.
func (a *LocalArchive) Put(_ context.Context, key string, body []byte) error {
	p, err := a.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Get reads a stored report.
func (a *LocalArchive) Get(_ context.Context, key string) ([]byte, error) {
	p, err := a.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.New(apperr.CodeNotFound, "archived report not found")
	}
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return b, nil
}

// S3API is the subset of the S3 client used by S3Archive.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archive keeps reports in an S3-compatible bucket.
type S3Archive struct {
	Client S3API
	Bucket string
}

// NewS3Archive builds an S3 client from configuration. Static credentials
// are used when given; otherwise the default AWS credential chain applies.
func NewS3Archive(ctx context.Context, cfg config.S3Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Archive{Client: client, Bucket: cfg.Bucket}, nil
}

// Put uploads the report.
func (a *S3Archive) Put(ctx context.Context, key string, body []byte) error {
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return fmt.Errorf("uploading report %s: %w", key, err)
	}
	return nil
}

// Get downloads a report.
func (a *S3Archive) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperr.New(apperr.CodeNotFound, "archived report not found")
		}
		return nil, fmt.Errorf("downloading report %s: %w", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", key, err)
	}
	return b, nil
}
