package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irclight/unfurl/internal/clock/system"
	"github.com/irclight/unfurl/internal/fetch"
	hashsha "github.com/irclight/unfurl/internal/hash/sha256"
	idgen "github.com/irclight/unfurl/internal/id/uuid"
	"github.com/irclight/unfurl/internal/metrics"
	"github.com/irclight/unfurl/internal/preview"
	"github.com/irclight/unfurl/internal/scheduler"
	"github.com/irclight/unfurl/internal/throttle"
)

const ogPage = `<html><head>` +
	`<meta property="og:title" content="Release Radar"/>` +
	`<meta property="og:description" content="Fresh links."/>` +
	`</head><body></body></html>`

func newTestServer(t *testing.T) (*Server, *scheduler.Scheduler) {
	t.Helper()
	metrics.Init()

	cfg := preview.DefaultFetchConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Delay = 0
	sched := scheduler.New(
		cfg,
		throttle.New(cfg.Concurrency, cfg.Delay),
		fetch.New(cfg, zap.NewNop()),
		hashsha.New(),
		system.New(),
		idgen.New(),
		nil,
		zap.NewNop(),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Shutdown(ctx)
	})
	return NewServer(sched, zap.NewNop()), sched
}

func TestServer_SubmitPreview_ResolvesMetadata(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, ogPage)
	}))
	defer backend.Close()

	server, _ := newTestServer(t)

	body, err := json.Marshal(map[string]string{"url": backend.URL, "kind": "requested"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/previews", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var dto outcomeDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	require.Equal(t, "metadata", dto.Result)
	require.NotNil(t, dto.Metadata)
	require.Equal(t, "Release Radar", dto.Metadata.Title)
	require.NotEmpty(t, dto.RequestID)
	require.Positive(t, dto.Bytes)
	require.Empty(t, dto.Error)
}

func TestServer_SubmitPreview_InvalidJSON(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/previews", strings.NewReader("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SubmitPreview_MissingURL(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/previews", strings.NewReader(`{"url":""}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "url required")
}

func TestServer_SubmitPreview_RejectsBadScheme(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(
		http.MethodPost,
		"/v1/previews",
		strings.NewReader(`{"url":"ftp://example.com/file"}`),
	)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "scheme")
}

func TestServer_SubmitPreview_RejectsUnknownKind(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(
		http.MethodPost,
		"/v1/previews",
		strings.NewReader(`{"url":"http://example.com","kind":"urgent"}`),
	)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid kind")
}

func TestServer_SubmitPreview_ShuttingDown(t *testing.T) {
	t.Parallel()

	server, sched := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Close(ctx))

	req := httptest.NewRequest(
		http.MethodPost,
		"/v1/previews",
		strings.NewReader(`{"url":"http://example.com"}`),
	)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ready")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}
