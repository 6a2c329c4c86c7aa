package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hma-data/mba-ingest/internal/config"
	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/internal/queue"
)

func newTestServer(t *testing.T) (*Server, *queue.Queue) {
	t.Helper()
	q := queue.New()
	scopes := map[string]*config.ScopeConfig{
		"mba":    {Bucket: "mba-bucket", Prefix: "mba/"},
		"policy": {Bucket: "policy-bucket", Prefix: "policy/"},
	}
	return NewServer(config.APIConfig{Host: "127.0.0.1", Port: 0}, q, scopes), q
}

func postJobs(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleJobs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "members.csv")
	require.NoError(t, os.WriteFile(file, []byte("id,name\n"), 0644))

	t.Run("accepts a valid job", func(t *testing.T) {
		s, q := newTestServer(t)
		rec := postJobs(t, s, `{"path":"`+file+`","scope":"mba","includeType":true}`)
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp jobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "mba-bucket", resp.Bucket)
		assert.Equal(t, "mba/csv/members.csv", resp.Key)
		assert.Equal(t, "queued", resp.Status)

		job, ok := q.Get(context.Background(), time.Second)
		require.True(t, ok)
		assert.Equal(t, file, job.Path)
		assert.Equal(t, resp.ID, job.ID)
	})

	t.Run("explicit key wins", func(t *testing.T) {
		s, q := newTestServer(t)
		rec := postJobs(t, s, `{"path":"`+file+`","scope":"policy","key":"policy/custom/members.csv"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)

		job, ok := q.Get(context.Background(), time.Second)
		require.True(t, ok)
		assert.Equal(t, "policy/custom/members.csv", job.Key)
		assert.Equal(t, "policy-bucket", job.Bucket)
	})

	t.Run("scope is case insensitive", func(t *testing.T) {
		s, _ := newTestServer(t)
		rec := postJobs(t, s, `{"path":"`+file+`","scope":"MBA"}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("rejects unknown scope", func(t *testing.T) {
		s, _ := newTestServer(t)
		rec := postJobs(t, s, `{"path":"`+file+`","scope":"claims"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown scope")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		s, _ := newTestServer(t)
		rec := postJobs(t, s, `{"path":"/nope/missing.csv","scope":"mba"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "file not found")
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		s, _ := newTestServer(t)
		rec := postJobs(t, s, `{"scope":"mba"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		s, _ := newTestServer(t)
		rec := postJobs(t, s, `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects GET", func(t *testing.T) {
		s, _ := newTestServer(t)
		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleStats(t *testing.T) {
	s, q := newTestServer(t)
	q.Put(core.NewUploadJob("/data/a.csv", "mba", "b", "k/a"))
	q.Put(core.NewUploadJob("/data/b.csv", "mba", "b", "k/b"))

	_, ok := q.Get(context.Background(), time.Second)
	require.True(t, ok)
	q.Done()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats core.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, core.QueueStats{Queued: 1, Processed: 1, Failed: 0, Total: 2}, stats)
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
