package objstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/encrypt"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// Client is the narrow object store surface the ingestion pipeline needs.
type Client interface {
	// Head reports whether an object exists at bucket/key and returns its
	// metadata when it does. A missing object is a normal negative result;
	// other failures are logged and reported as not-found so existence
	// checks fail open toward re-uploading rather than silently skipping.
	Head(ctx context.Context, bucket string, key string) (bool, *core.ObjectMetadata)

	// List returns up to maxItems objects under prefix.
	List(ctx context.Context, bucket string, prefix string, maxItems int) ([]ListEntry, error)

	// Put uploads the file at path to bucket/key. Returned errors carry a
	// core.ErrorClass so callers can decide whether to retry.
	Put(ctx context.Context, path string, bucket string, key string, opts PutOptions) error
}

// ListEntry is one object summary from a listing.
type ListEntry struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// PutOptions carries the per-upload options attached to a PUT.
type PutOptions struct {
	// ContentType is the object content type; empty lets the store sniff it.
	ContentType string
	// UserMetadata is attached as user-defined object metadata.
	UserMetadata map[string]string
	// SSE is the server-side encryption type ("AES256" or empty).
	SSE string
}

// s3API abstracts the MinIO client to expose the limited functionality the
// wrapper uses, which also allows for mocking in tests.
type s3API interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)

	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo

	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type client struct {
	api s3API
	cfg config.StoreConfig
}

// New creates a Client from the store configuration. The underlying MinIO
// client is constructed once and injected into components; retry semantics
// live in the uploader, so the transport itself does not retry.
func New(cfg config.StoreConfig) (Client, error) {
	if err := config.ValidateStoreConfig(cfg); err != nil {
		return nil, err
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:      resolveCredentials(cfg),
		Secure:     cfg.UseSSL,
		Region:     cfg.Region,
		MaxRetries: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	logx.As().Trace().
		Str("endpoint", cfg.Endpoint).
		Str("region", cfg.Region).
		Msg("Object store client created")

	return &client{api: mc, cfg: cfg}, nil
}

func (c *client) Head(ctx context.Context, bucket string, key string) (bool, *core.ObjectMetadata) {
	info, err := c.api.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			logx.As().Debug().
				Str("bucket", bucket).
				Str("key", key).
				Msg("Object not found")
			return false, nil
		}

		// fail open: a head we cannot perform must not cause a silent skip
		logx.As().Warn().
			Str("bucket", bucket).
			Str("key", key).
			Err(err).
			Msg("Error checking object existence, treating as not found")
		return false, nil
	}

	md := &core.ObjectMetadata{
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         strings.Trim(info.ETag, `"`),
		ContentType:  info.ContentType,
		UserMetadata: info.UserMetadata,
	}

	logx.As().Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int64("size", md.Size).
		Str("etag", md.ETag).
		Msg("Object exists")

	return true, md
}

func (c *client) List(ctx context.Context, bucket string, prefix string, maxItems int) ([]ListEntry, error) {
	objects := c.api.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var entries []ListEntry
	for obj := range objects {
		if obj.Err != nil {
			return entries, fmt.Errorf("error listing %s/%s: %w", bucket, prefix, obj.Err)
		}

		entries = append(entries, ListEntry{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         strings.Trim(obj.ETag, `"`),
		})

		if maxItems > 0 && len(entries) >= maxItems {
			break
		}
	}

	logx.As().Info().
		Int("count", len(entries)).
		Str("bucket", bucket).
		Str("prefix", prefix).
		Msg("Listed objects")

	return entries, nil
}

func (c *client) Put(ctx context.Context, path string, bucket string, key string, opts PutOptions) error {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.UserMetadata,
	}
	if opts.SSE == "AES256" {
		putOpts.ServerSideEncryption = encrypt.NewSSE()
	}

	info, err := c.api.FPutObject(ctx, bucket, key, path, putOpts)
	if err != nil {
		return classify(err)
	}

	logx.As().Info().
		Str("path", path).
		Str("bucket", bucket).
		Str("key", key).
		Int64("size", info.Size).
		Str("etag", strings.Trim(info.ETag, `"`)).
		Msg("Object uploaded")

	return nil
}

// classify maps a store error onto the retry taxonomy. Unknown service
// response codes and network errors are transient; errors that are neither
// a service response nor a network failure (local I/O, bugs) stay
// unclassified and are never retried.
func classify(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccessKeyDisabled", "CredentialsNotSupported":
			return core.WithClass(err, core.ClassCredentials)
		case "AccessDenied", "AllAccessDisabled":
			return core.WithClass(err, core.ClassAccessDenied)
		case "NoSuchBucket":
			return core.WithClass(err, core.ClassBucketMissing)
		default:
			return core.WithClass(err, core.ClassTransient)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.WithClass(err, core.ClassTransient)
	}

	return core.WithClass(err, core.ClassUnclassified)
}
