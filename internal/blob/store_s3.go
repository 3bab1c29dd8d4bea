// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by [S3Store].
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures [NewS3Store].
type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string // Custom endpoint for R2 / MinIO. Empty means AWS.
	Prefix   string // Optional key prefix every relative path is placed under.
}

// S3Store keeps blobs as objects in an S3 compatible bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Store builds a client from the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("blob: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, opts.Bucket, opts.Prefix, logger), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

func (store *S3Store) key(cleaned string) string {
	if store.prefix == "" {
		return cleaned
	}
	return path.Join(store.prefix, cleaned)
}

// Put buffers the content so the request carries an exact Content-Length.
func (store *S3Store) Put(ctx context.Context, relativePath string, content io.Reader) (string, error) {
	cleaned, err := CleanPath(relativePath)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("blob: read content for %s: %w", cleaned, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(store.bucket),
		Key:           aws.String(store.key(cleaned)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType := mime.TypeByExtension(path.Ext(cleaned)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := store.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("blob: put s3://%s/%s: %w", store.bucket, store.key(cleaned), err)
	}

	return cleaned, nil
}

// Delete removes the object. S3 deletes are idempotent, so a HEAD first
// tells a missing object apart for logging.
func (store *S3Store) Delete(ctx context.Context, relativePath string) error {
	cleaned, err := CleanPath(relativePath)
	if err != nil {
		return err
	}

	exists, err := store.Exists(ctx, cleaned)
	if err != nil {
		return err
	}
	if !exists {
		store.logger.WarnContext(ctx, "blob_delete_missing", slog.String("path", cleaned))
		return nil
	}

	_, err = store.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(store.key(cleaned)),
	})
	if err != nil {
		return fmt.Errorf("blob: delete s3://%s/%s: %w", store.bucket, store.key(cleaned), err)
	}

	return nil
}

// Exists issues a HEAD request for the object.
func (store *S3Store) Exists(ctx context.Context, relativePath string) (bool, error) {
	cleaned, err := CleanPath(relativePath)
	if err != nil {
		return false, err
	}

	_, err = store.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(store.key(cleaned)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("blob: head s3://%s/%s: %w", store.bucket, store.key(cleaned), err)
	}

	return true, nil
}

// Walk lists every object under the prefix, page by page.
func (store *S3Store) Walk(ctx context.Context, fn func(Object) error) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(store.bucket)}
	if store.prefix != "" {
		input.Prefix = aws.String(store.prefix + "/")
	}

	paginator := s3.NewListObjectsV2Paginator(store.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("blob: list s3://%s: %w", store.bucket, err)
		}

		for _, item := range page.Contents {
			key := aws.ToString(item.Key)
			if store.prefix != "" {
				key = strings.TrimPrefix(key, store.prefix+"/")
			}
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}

			object := Object{
				Path:    key,
				Size:    aws.ToInt64(item.Size),
				ModTime: aws.ToTime(item.LastModified),
			}
			if err := fn(object); err != nil {
				return err
			}
		}
	}

	return nil
}

// isNotFound recognises a missing key across AWS and R2 error shapes.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	return false
}
