// Package s3 implements the store gateway on top of Amazon S3 or any
// S3-compatible object storage (MinIO, Cubbit DS3, ...).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittodrive/pkg/store"
)

// S3Gateway implements store.Gateway against a single bucket.
//
// Key design:
//   - Object keys are used verbatim; the logical layer composes the
//     per-user prefix before calling the gateway
//   - Directory markers are ordinary zero-byte objects whose key ends in "/"
//   - The bucket therefore mirrors the drive structure and is directly
//     inspectable with any S3 browser
//
// Error translation:
//   - NoSuchKey / 404 responses become store.ErrObjectNotFound
//   - Every other SDK failure becomes store.ErrStoreUnavailable
//
// Retry policy lives in the SDK retryer configured on the client; the
// gateway itself never retries.
//
// Thread safety: the underlying SDK client is safe for concurrent use, and
// the gateway holds no mutable state.
type S3Gateway struct {
	client *awss3.Client
	bucket string
}

// S3GatewayConfig contains configuration for the S3 gateway.
type S3GatewayConfig struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the bucket name.
	Bucket string

	// CreateBucket makes the constructor create the bucket when it does not
	// exist yet. Useful against local MinIO; production buckets should be
	// provisioned out of band.
	CreateBucket bool
}

// NewS3Gateway creates a gateway and verifies bucket access.
//
// With CreateBucket set, a missing bucket is created; otherwise the bucket
// must already exist.
func NewS3Gateway(ctx context.Context, cfg S3GatewayConfig) (*S3Gateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if cfg.CreateBucket && errors.As(err, &notFound) {
			_, err = cfg.Client.CreateBucket(ctx, &awss3.CreateBucketInput{
				Bucket: aws.String(cfg.Bucket),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
			}
		} else {
			return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &S3Gateway{
		client: cfg.Client,
		bucket: cfg.Bucket,
	}, nil
}

// Stat implements store.Gateway using a HEAD request, retrieving object
// metadata without downloading the body.
func (g *S3Gateway) Stat(ctx context.Context, key string) (*store.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := g.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("stat %s: %w", key, store.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to head object %s: %w", key, wrapUnavailable(err))
	}

	obj := &store.Object{Key: key}
	if result.ContentLength != nil {
		obj.Size = *result.ContentLength
	}
	if result.ContentType != nil {
		obj.ContentType = *result.ContentType
	}

	return obj, nil
}

// Exists implements store.Gateway. The listing is capped at one key, so the
// probe costs a single request regardless of how many objects share the
// prefix.
func (g *S3Gateway) Exists(ctx context.Context, prefix string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	result, err := g.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(g.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to probe prefix %s: %w", prefix, wrapUnavailable(err))
	}

	return result.KeyCount != nil && *result.KeyCount > 0, nil
}

// List implements store.Gateway. Pagination is driven to completion here so
// callers always see the full key set under the prefix.
func (g *S3Gateway) List(ctx context.Context, prefix string) ([]store.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []store.Object

	paginator := awss3.NewListObjectsV2Paginator(g.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, wrapUnavailable(err))
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			entry := store.Object{Key: *obj.Key}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			objects = append(objects, entry)
		}
	}

	return objects, nil
}

// Get implements store.Gateway. The returned reader streams directly from
// the S3 response body; the caller must close it.
func (g *S3Gateway) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := g.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get %s: %w", key, store.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, wrapUnavailable(err))
	}

	return result.Body, nil
}

// Put implements store.Gateway. Content length is passed through so the SDK
// does not need to buffer the stream to size it.
func (g *S3Gateway) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	input := &awss3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := g.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, wrapUnavailable(err))
	}

	return nil
}

// Delete implements store.Gateway. S3 DeleteObject succeeds for absent keys,
// which gives the idempotency the interface requires for free.
func (g *S3Gateway) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := g.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, wrapUnavailable(err))
	}

	return nil
}

// isNotFound reports whether an SDK error means the object does not exist.
// GetObject surfaces NoSuchKey while HeadObject surfaces a bare 404 NotFound,
// so both are checked.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// wrapUnavailable tags an SDK failure with the store-level sentinel while
// keeping the original error in the chain for logging.
func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
}
