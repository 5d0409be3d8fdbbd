package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeychilson/sitemapgen/cache"
	"github.com/joeychilson/sitemapgen/config"
	"github.com/joeychilson/sitemapgen/sitemap"
)

func newTestServer(t *testing.T, cfg *ServerConfig) *Server {
	t.Helper()
	mc := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { mc.Close() })

	s, err := New(mc, nil, cfg)
	require.NoError(t, err)
	return s
}

func postJSON(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/sitemaps", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func generate(t *testing.T, h http.Handler, body any) GenerateResponse {
	t.Helper()
	w := postJSON(t, h, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func get(h http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// TestHandleHealthEndpoint verifies /health endpoint works.
func TestHandleHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := get(s.Router(), "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var health map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["time"])
}

// TestHandleGenerateSingle verifies a small set produces one sitemap.xml.
func TestHandleGenerateSingle(t *testing.T) {
	s := newTestServer(t, nil)

	resp := generate(t, s, map[string]any{
		"entries": []any{"/", map[string]any{"loc": "/about", "priority": 0.8, "changefreq": "monthly"}},
		"options": map[string]any{"base_url": "https://example.com/"},
	})

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 1, resp.Pages)
	assert.Equal(t, 2, resp.Entries)
	assert.Empty(t, resp.Index)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "sitemap.xml", resp.Files[0].Name)
	assert.Equal(t, "/v1/sitemaps/"+resp.ID+"/sitemap.xml", resp.Files[0].URL)

	w := get(s, resp.Files[0].URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, resp.Files[0].ETag, w.Header().Get("ETag"))
	assert.Equal(t, resp.Files[0].Bytes, w.Body.Len())

	body := w.Body.String()
	assert.Contains(t, body, "<loc>https://example.com</loc>")
	assert.Contains(t, body, "<loc>https://example.com/about</loc><priority>0.8</priority><changefreq>monthly</changefreq>")
}

// TestHandleGenerateMultiplePages verifies pages and index are served.
func TestHandleGenerateMultiplePages(t *testing.T) {
	s := newTestServer(t, nil)

	entries := make([]string, sitemap.MaxEntriesPerPage+5)
	for i := range entries {
		entries[i] = fmt.Sprintf("https://example.com/p/%d", i)
	}

	resp := generate(t, s, map[string]any{
		"entries": entries,
		"options": map[string]any{"base_url": "https://cdn.example.com"},
	})

	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, "sitemap-index.xml", resp.Index)
	require.Len(t, resp.Files, 3)
	assert.Equal(t, "sitemap-part-01.xml", resp.Files[0].Name)
	assert.Equal(t, "sitemap-part-02.xml", resp.Files[1].Name)

	w := get(s, "/v1/sitemaps/"+resp.ID+"/sitemap-index.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<loc>https://cdn.example.com/sitemap-part-02.xml</loc>")

	w = get(s, "/v1/sitemaps/"+resp.ID+"/sitemap-part-02.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, strings.Count(w.Body.String(), "<url>"))
}

// TestHandleGenerateGzip verifies gzip output is served as application/gzip.
func TestHandleGenerateGzip(t *testing.T) {
	s := newTestServer(t, nil)

	resp := generate(t, s, map[string]any{
		"entries": []string{"https://example.com/"},
		"options": map[string]any{"gzip": true},
	})
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "sitemap.xml.gz", resp.Files[0].Name)

	w := get(s, resp.Files[0].URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	xml, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(xml), "<loc>https://example.com/</loc>")
}

// TestHandleFileConditional verifies If-None-Match yields 304.
func TestHandleFileConditional(t *testing.T) {
	s := newTestServer(t, &ServerConfig{CacheTTL: 10 * time.Minute})

	resp := generate(t, s, map[string]any{"entries": []string{"https://example.com/"}})
	etag := resp.Files[0].ETag

	w := get(s, resp.Files[0].URL, http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, etag, w.Header().Get("ETag"))

	w = get(s, resp.Files[0].URL, http.Header{"If-None-Match": {`"other", W/` + etag}})
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = get(s, resp.Files[0].URL, http.Header{"If-None-Match": {`"other"`}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=")
}

// TestHandleFileNotFound verifies unknown ids and names are rejected.
func TestHandleFileNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	resp := generate(t, s, map[string]any{"entries": []string{"https://example.com/"}})

	tests := []string{
		"/v1/sitemaps/not-a-uuid/sitemap.xml",
		"/v1/sitemaps/7d444840-9dc0-11d1-b245-5ffdce74fad2/sitemap.xml",
		"/v1/sitemaps/" + resp.ID + "/sitemap-index.xml",
		"/v1/sitemaps/" + resp.ID + "/notes.txt",
	}

	for _, target := range tests {
		w := get(s, target, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, target)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
		assert.Equal(t, http.StatusNotFound, errResp.StatusCode)
	}
}

// TestHandleGenerateInvalid verifies bad requests are rejected.
func TestHandleGenerateInvalid(t *testing.T) {
	s := newTestServer(t, &ServerConfig{MaxEntries: 3})

	tests := []struct {
		name   string
		body   any
		status int
		errMsg string
	}{
		{
			name:   "no entries",
			body:   map[string]any{"entries": []string{}},
			status: http.StatusBadRequest,
			errMsg: "entries cannot be empty",
		},
		{
			name:   "too many entries",
			body:   map[string]any{"entries": []string{"/a", "/b", "/c", "/d"}},
			status: http.StatusRequestEntityTooLarge,
			errMsg: "too many entries",
		},
		{
			name:   "relative base url",
			body:   map[string]any{"entries": []string{"/a"}, "options": map[string]any{"base_url": "example.com"}},
			status: http.StatusBadRequest,
			errMsg: "base_url",
		},
		{
			name:   "bad changefreq",
			body:   map[string]any{"entries": []any{map[string]any{"loc": "/a", "changefreq": "sometimes"}}},
			status: http.StatusBadRequest,
			errMsg: "entries[0]",
		},
		{
			name:   "bad default lastmod",
			body:   map[string]any{"entries": []string{"/a"}, "options": map[string]any{"defaults": map[string]any{"lastmod": "whenever"}}},
			status: http.StatusBadRequest,
			errMsg: "defaults",
		},
		{
			name:   "bad timezone",
			body:   map[string]any{"entries": []string{"/a"}, "options": map[string]any{"timezone": "Nowhere/Special"}},
			status: http.StatusBadRequest,
			errMsg: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, s, tt.body)
			assert.Equal(t, tt.status, w.Code)

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
			assert.Contains(t, errResp.Error, tt.errMsg)
		})
	}
}

// TestHandleGenerateInvalidJSON verifies invalid JSON is rejected.
func TestHandleGenerateInvalidJSON(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sitemaps", strings.NewReader("invalid json"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "Invalid JSON")
}

// TestHandleGenerateBodyTooLarge verifies the request size cap.
func TestHandleGenerateBodyTooLarge(t *testing.T) {
	s := newTestServer(t, &ServerConfig{MaxRequestBytes: 64})

	w := postJSON(t, s, map[string]any{"entries": []string{strings.Repeat("a", 100)}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// TestNullDefaultsOverride verifies an explicit null on an entry drops the default.
func TestNullDefaultsOverride(t *testing.T) {
	s := newTestServer(t, nil)

	resp := generate(t, s, map[string]any{
		"entries": []any{
			map[string]any{"loc": "https://example.com/a"},
			map[string]any{"loc": "https://example.com/b", "priority": nil},
			map[string]any{"loc": "https://example.com/c", "priority": 0},
		},
		"options": map[string]any{"defaults": map[string]any{"priority": 0.5}},
	})

	body := get(s, resp.Files[0].URL, nil).Body.String()
	assert.Contains(t, body, "<loc>https://example.com/a</loc><priority>0.5</priority>")
	assert.Contains(t, body, "<loc>https://example.com/b</loc></url>")
	assert.Contains(t, body, "<loc>https://example.com/c</loc><priority>0.0</priority>")
}

// TestRateLimit verifies the limiter rejects requests over the limit.
func TestRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tests := []struct {
		name  string
		redis *redis.Client
	}{
		{"in-memory", nil},
		{"redis", client},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &ServerConfig{
				RateLimit:   config.RateLimitConfig{Requests: 2, Window: time.Minute},
				RedisClient: tt.redis,
			})

			for range 2 {
				assert.Equal(t, http.StatusOK, get(s, "/health", nil).Code)
			}
			w := get(s, "/health", nil)
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Contains(t, w.Body.String(), "rate limit exceeded")
		})
	}
}

// TestRateLimitDisabled verifies no limiter is installed without a limit.
func TestRateLimitDisabled(t *testing.T) {
	s := newTestServer(t, &ServerConfig{RateLimit: config.RateLimitConfig{Window: time.Minute}})

	for range 150 {
		require.Equal(t, http.StatusOK, get(s, "/health", nil).Code)
	}
}

// TestServe verifies the server runs on a listener and stops with its context.
func TestServe(t *testing.T) {
	s := newTestServer(t, &ServerConfig{MaxConnections: 4})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// flakyCache fails the first Set call.
type flakyCache struct {
	cache.Cache
	failed bool
}

func (f *flakyCache) Set(ctx context.Context, key string, doc *cache.Document) error {
	if !f.failed {
		f.failed = true
		return fmt.Errorf("redis: connection pool timeout")
	}
	return f.Cache.Set(ctx, key, doc)
}

// TestHandleGenerateRetriesCacheWrites verifies a transient cache failure is retried.
func TestHandleGenerateRetriesCacheWrites(t *testing.T) {
	mc := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { mc.Close() })

	body := map[string]any{"entries": []any{"/"}, "options": map[string]any{"base_url": "https://example.com"}}

	s, err := New(&flakyCache{Cache: mc}, nil, nil)
	require.NoError(t, err)
	w := postJSON(t, s, body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	s, err = New(&flakyCache{Cache: mc}, nil, &ServerConfig{
		Retry: config.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond},
	})
	require.NoError(t, err)
	resp := generate(t, s, body)
	assert.Equal(t, http.StatusOK, get(s, resp.Files[0].URL, nil).Code)
}

// TestNewRequiresCache verifies a cache must be supplied.
func TestNewRequiresCache(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)

	mc := cache.NewMemoryCache(cache.DefaultConfig())
	defer mc.Close()
	_, err = New(mc, nil, &ServerConfig{MaxConnections: -1})
	assert.Error(t, err)
}

func TestEtagMatch(t *testing.T) {
	tests := []struct {
		header string
		etag   string
		want   bool
	}{
		{`"abc"`, `"abc"`, true},
		{`W/"abc"`, `"abc"`, true},
		{`"x", "abc"`, `"abc"`, true},
		{`*`, `"abc"`, true},
		{`"x"`, `"abc"`, false},
		{``, `"abc"`, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, etagMatch(tt.header, tt.etag), "etagMatch(%q, %q)", tt.header, tt.etag)
	}
}
