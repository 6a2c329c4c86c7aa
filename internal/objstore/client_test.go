package objstore

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/core"
)

// mockS3API is a mock implementation of the s3API interface.
type mockS3API struct {
	mock.Mock
}

func (m *mockS3API) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *mockS3API) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

func (m *mockS3API) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, filePath, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func newTestClient(api s3API) *client {
	return &client{
		api: api,
		cfg: config.StoreConfig{Endpoint: "s3.amazonaws.com", Region: "us-east-1", SSE: "AES256"},
	}
}

func notFoundErr() error {
	return minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound, Message: "The specified key does not exist."}
}

func TestClient_Head(t *testing.T) {
	bucket := "mba-bucket"
	key := "mba/csv/members.csv"

	t.Run("object exists", func(t *testing.T) {
		api := new(mockS3API)
		api.On("StatObject", mock.Anything, bucket, key, mock.Anything).Return(minio.ObjectInfo{
			Size:         500,
			ETag:         `"abc123"`,
			ContentType:  "text/csv",
			LastModified: time.Now(),
		}, nil).Once()

		c := newTestClient(api)
		exists, md := c.Head(context.Background(), bucket, key)
		assert.True(t, exists)
		require.NotNil(t, md)
		assert.Equal(t, int64(500), md.Size)
		assert.Equal(t, "abc123", md.ETag) // quotes stripped
		api.AssertExpectations(t)
	})

	t.Run("not found is a normal negative", func(t *testing.T) {
		api := new(mockS3API)
		api.On("StatObject", mock.Anything, bucket, key, mock.Anything).Return(minio.ObjectInfo{}, notFoundErr()).Once()

		c := newTestClient(api)
		exists, md := c.Head(context.Background(), bucket, key)
		assert.False(t, exists)
		assert.Nil(t, md)
	})

	t.Run("other errors fail open toward not found", func(t *testing.T) {
		api := new(mockS3API)
		api.On("StatObject", mock.Anything, bucket, key, mock.Anything).Return(minio.ObjectInfo{},
			minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}).Once()

		c := newTestClient(api)
		exists, md := c.Head(context.Background(), bucket, key)
		assert.False(t, exists)
		assert.Nil(t, md)
	})
}

func TestClient_List(t *testing.T) {
	bucket := "mba-bucket"

	makeObjects := func(objs ...minio.ObjectInfo) <-chan minio.ObjectInfo {
		ch := make(chan minio.ObjectInfo, len(objs))
		for _, o := range objs {
			ch <- o
		}
		close(ch)
		return ch
	}

	t.Run("collects entries", func(t *testing.T) {
		api := new(mockS3API)
		api.On("ListObjects", mock.Anything, bucket, mock.Anything).Return(makeObjects(
			minio.ObjectInfo{Key: "mba/csv/a.csv", Size: 10, ETag: `"e1"`},
			minio.ObjectInfo{Key: "mba/csv/b.csv", Size: 20, ETag: `"e2"`},
		)).Once()

		c := newTestClient(api)
		entries, err := c.List(context.Background(), bucket, "mba/", 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "mba/csv/a.csv", entries[0].Key)
		assert.Equal(t, "e1", entries[0].ETag)
	})

	t.Run("caps result count", func(t *testing.T) {
		api := new(mockS3API)
		api.On("ListObjects", mock.Anything, bucket, mock.Anything).Return(makeObjects(
			minio.ObjectInfo{Key: "a"}, minio.ObjectInfo{Key: "b"}, minio.ObjectInfo{Key: "c"},
		)).Once()

		c := newTestClient(api)
		entries, err := c.List(context.Background(), bucket, "", 2)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("propagates listing errors", func(t *testing.T) {
		api := new(mockS3API)
		api.On("ListObjects", mock.Anything, bucket, mock.Anything).Return(makeObjects(
			minio.ObjectInfo{Err: errors.New("listing failed")},
		)).Once()

		c := newTestClient(api)
		_, err := c.List(context.Background(), bucket, "", 0)
		assert.Error(t, err)
	})
}

func TestClient_Put(t *testing.T) {
	tempDir := t.TempDir()
	srcFile := filepath.Join(tempDir, "members.csv")
	require.NoError(t, os.WriteFile(srcFile, []byte("id,name\n1,a\n"), 0644))

	bucket := "mba-bucket"
	key := "mba/csv/members.csv"

	t.Run("success", func(t *testing.T) {
		api := new(mockS3API)
		api.On("FPutObject", mock.Anything, bucket, key, srcFile, mock.Anything).Return(minio.UploadInfo{
			Key: key, Size: 12, ETag: `"abc"`,
		}, nil).Once()

		c := newTestClient(api)
		err := c.Put(context.Background(), srcFile, bucket, key, PutOptions{
			SSE:          "AES256",
			UserMetadata: map[string]string{"original-filename": "members.csv"},
		})
		assert.NoError(t, err)
		api.AssertExpectations(t)
	})

	t.Run("error classification", func(t *testing.T) {
		tests := []struct {
			name string
			code string
			want core.ErrorClass
		}{
			{name: "invalid access key", code: "InvalidAccessKeyId", want: core.ClassCredentials},
			{name: "bad signature", code: "SignatureDoesNotMatch", want: core.ClassCredentials},
			{name: "access denied", code: "AccessDenied", want: core.ClassAccessDenied},
			{name: "missing bucket", code: "NoSuchBucket", want: core.ClassBucketMissing},
			{name: "throttling", code: "SlowDown", want: core.ClassTransient},
			{name: "internal error", code: "InternalError", want: core.ClassTransient},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				api := new(mockS3API)
				api.On("FPutObject", mock.Anything, bucket, key, srcFile, mock.Anything).Return(minio.UploadInfo{},
					minio.ErrorResponse{Code: tt.code}).Once()

				c := newTestClient(api)
				err := c.Put(context.Background(), srcFile, bucket, key, PutOptions{})
				require.Error(t, err)
				assert.Equal(t, tt.want, core.ClassOf(err))
			})
		}
	})

	t.Run("network error is transient", func(t *testing.T) {
		api := new(mockS3API)
		api.On("FPutObject", mock.Anything, bucket, key, srcFile, mock.Anything).Return(minio.UploadInfo{},
			&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}).Once()

		c := newTestClient(api)
		err := c.Put(context.Background(), srcFile, bucket, key, PutOptions{})
		require.Error(t, err)
		assert.Equal(t, core.ClassTransient, core.ClassOf(err))
	})

	t.Run("local errors are unclassified and never retried", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
		}{
			{name: "path error", err: &os.PathError{Op: "open", Path: srcFile, Err: os.ErrPermission}},
			{name: "plain error", err: errors.New("unexpected state")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				api := new(mockS3API)
				api.On("FPutObject", mock.Anything, bucket, key, srcFile, mock.Anything).Return(minio.UploadInfo{}, tt.err).Once()

				c := newTestClient(api)
				err := c.Put(context.Background(), srcFile, bucket, key, PutOptions{})
				require.Error(t, err)
				assert.Equal(t, core.ClassUnclassified, core.ClassOf(err))
				assert.False(t, core.Retryable(err))
			})
		}
	})
}
