package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const archiveSuffix = ".tgz"

// S3API is the subset of the S3 client the store uses
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps cache archives as <prefix><key>.tgz objects in a bucket
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

var _ Store = (*S3Store)(nil)

// S3Options configures the S3 backend
type S3Options struct {
	Bucket string
	Prefix string

	// Region overrides the env/profile region chain
	Region string

	// Endpoint points the client at an S3 compatible service (MinIO, R2, ...)
	Endpoint string

	// PathStyle forces path-style addressing, which most S3 compatible
	// services need
	PathStyle bool
}

// NewS3 creates an S3 store using client
func NewS3(client S3API, bucket, prefix string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// OpenS3 loads AWS config the way the AWS CLI does (env, shared config,
// IMDS) and creates an S3 store from it.
func OpenS3(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}

		o.UsePathStyle = opts.PathStyle
	})

	return NewS3(client, opts.Bucket, opts.Prefix)
}

// Restore implements Store
func (s *S3Store) Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys []string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoPaths
	}

	key, err := match(ctx, s, primaryKey, restoreKeys)
	if err != nil || key == "" {
		return "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := Unpack(ctx, out.Body, paths); err != nil {
		return "", fmt.Errorf("failed to restore %s: %w", key, err)
	}

	return key, nil
}

// Save implements Store. The upload is conditional on the object not
// existing, so concurrent writers of the same key cannot clobber each other.
func (s *S3Store) Save(ctx context.Context, paths []string, key string) error {
	if key == "" {
		return fmt.Errorf("cache key is required")
	}

	if ok, err := s.exists(ctx, key); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}

	// The SDK needs a seekable body to sign the upload
	tmp, err := os.CreateTemp("", "setup-go-*"+archiveSuffix)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := Pack(ctx, tmp, paths); err != nil {
		return fmt.Errorf("failed to archive cache paths: %w", err)
	}

	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          tmp,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/gzip"),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrKeyExists, key)
		}

		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return nil
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}

	return false, err
}

func (s *S3Store) newest(ctx context.Context, prefix string) (string, bool, error) {
	var (
		best    string
		created time.Time
	)

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return "", false, err
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if !strings.HasSuffix(name, archiveSuffix) {
				continue
			}

			modified := aws.ToTime(obj.LastModified)
			if best == "" || modified.After(created) {
				best, created = strings.TrimSuffix(name, archiveSuffix), modified
			}
		}
	}

	return best, best != "", nil
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + key + archiveSuffix
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}

	return false
}
